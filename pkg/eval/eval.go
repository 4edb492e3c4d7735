package eval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
)

// Evaluation failures. Each evaluation call surfaces exactly one of these
// (wrapped with detail); none of them corrupts stored state.
var (
	ErrMissingField    = errors.New("missing field")
	ErrUnknownFunction = errors.New("unknown function")
	ErrArityMismatch   = errors.New("arity mismatch")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrArithmetic      = errors.New("arithmetic error")
	ErrBadRegex        = errors.New("invalid regex")
	ErrDepthExceeded   = errors.New("reference depth exceeded")
	ErrFunctionTimeout = errors.New("function call exceeded budget")
)

// DefaultMaxDepth bounds nested expression resolution. It protects
// evaluation against reference graphs whose cycles have not been detected
// yet, for example during a transient state between label repoints.
const DefaultMaxDepth = 32

// Resolver resolves a nested expression reference to its AST. The ledger
// supplies one that reads the label directory for by-label refs, so two
// evaluations of the same label at different times may legitimately see
// different targets.
type Resolver interface {
	ResolveExpr(ref *ast.ExprRef) (ast.Node, error)
}

// Evaluator evaluates ASTs bottom-up. The zero value is not usable; set at
// least Registry. Evaluation is deterministic for a fixed AST, context,
// registry state, and resolver state.
type Evaluator struct {
	Registry *Registry
	Resolver Resolver

	// MaxDepth bounds nested expression references; 0 means
	// DefaultMaxDepth.
	MaxDepth int

	// CallBudget is the wall-clock budget for a single registered function
	// call; 0 means unbounded.
	CallBudget time.Duration
}

// Evaluate computes the value of the expression against the data context.
func (e *Evaluator) Evaluate(n ast.Node, ctx Context) (Value, error) {
	return e.eval(n, ctx, 0)
}

func (e *Evaluator) maxDepth() int {
	if e.MaxDepth > 0 {
		return e.MaxDepth
	}
	return DefaultMaxDepth
}

func (e *Evaluator) eval(n ast.Node, ctx Context, depth int) (Value, error) {
	switch t := n.(type) {
	case *ast.Literal:
		return literalValue(t, ctx, depth, e)
	case *ast.Field:
		v, ok := ctx.Get(t.Dotted())
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrMissingField, t.Dotted())
		}
		return v, nil
	case *ast.Not:
		inner, err := e.eval(t.Expr, ctx, depth)
		if err != nil {
			return Value{}, err
		}
		b, err := asBool(inner)
		if err != nil {
			return Value{}, err
		}
		return BoolVal(!b), nil
	case *ast.Logical:
		return e.evalLogical(t, ctx, depth)
	case *ast.Compare:
		return e.evalCompare(t, ctx, depth)
	case *ast.Arith:
		return e.evalArith(t, ctx, depth)
	case *ast.Membership:
		return e.evalMembership(t, ctx, depth)
	case *ast.Contains:
		return e.evalContains(t, ctx, depth)
	case *ast.RegexMatch:
		return e.evalRegex(t, ctx, depth)
	case *ast.Call:
		return e.evalCall(t, ctx, depth)
	case *ast.ExprRef:
		return e.evalRef(t, ctx, depth)
	default:
		return Value{}, fmt.Errorf("%w: unknown node %T", ErrTypeMismatch, n)
	}
}

// evalLogical short-circuits: the right operand is not evaluated when the
// left already decides the result.
func (e *Evaluator) evalLogical(l *ast.Logical, ctx Context, depth int) (Value, error) {
	lv, err := e.eval(l.LHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	lb, err := asBool(lv)
	if err != nil {
		return Value{}, err
	}
	switch l.Op {
	case ast.OpAnd:
		if !lb {
			return BoolVal(false), nil
		}
	case ast.OpOr:
		if lb {
			return BoolVal(true), nil
		}
	default:
		return Value{}, fmt.Errorf("%w: unknown logical op %q", ErrTypeMismatch, l.Op)
	}
	rv, err := e.eval(l.RHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	rb, err := asBool(rv)
	if err != nil {
		return Value{}, err
	}
	return BoolVal(rb), nil
}

func (e *Evaluator) evalCompare(c *ast.Compare, ctx Context, depth int) (Value, error) {
	lv, err := e.eval(c.LHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	rv, err := e.eval(c.RHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}

	// Null equality works across types; anything else needs matching kinds.
	if lv.Kind == KindNull || rv.Kind == KindNull {
		switch c.Op {
		case ast.OpEq:
			return BoolVal(lv.Kind == rv.Kind), nil
		case ast.OpNe:
			return BoolVal(lv.Kind != rv.Kind), nil
		default:
			return Value{}, fmt.Errorf("%w: null supports only == and !=", ErrTypeMismatch)
		}
	}
	if lv.Kind != rv.Kind {
		return Value{}, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, lv.Kind, rv.Kind)
	}

	switch c.Op {
	case ast.OpEq:
		return BoolVal(lv.Equal(rv)), nil
	case ast.OpNe:
		return BoolVal(!lv.Equal(rv)), nil
	}

	// Ordering: numbers and strings only.
	switch lv.Kind {
	case KindNumber:
		return BoolVal(orderedCompare(c.Op, lv.Num < rv.Num, lv.Num == rv.Num)), nil
	case KindString:
		return BoolVal(orderedCompare(c.Op, lv.Str < rv.Str, lv.Str == rv.Str)), nil
	default:
		return Value{}, fmt.Errorf("%w: ordering not supported for %s", ErrTypeMismatch, lv.Kind)
	}
}

func orderedCompare(op string, lt, eq bool) bool {
	switch op {
	case ast.OpLt:
		return lt
	case ast.OpLe:
		return lt || eq
	case ast.OpGt:
		return !lt && !eq
	case ast.OpGe:
		return !lt
	default:
		return false
	}
}

// evalArith applies numeric operators with explicit failure: division (and
// modulo) by zero, and any non-finite result, raise ErrArithmetic instead
// of propagating Inf or NaN into stored results.
func (e *Evaluator) evalArith(a *ast.Arith, ctx Context, depth int) (Value, error) {
	lv, err := e.eval(a.LHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	rv, err := e.eval(a.RHS, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	if lv.Kind != KindNumber || rv.Kind != KindNumber {
		return Value{}, fmt.Errorf("%w: %s expects numbers, got %s and %s", ErrTypeMismatch, a.Op, lv.Kind, rv.Kind)
	}

	var out float64
	switch a.Op {
	case ast.OpAdd:
		out = lv.Num + rv.Num
	case ast.OpSub:
		out = lv.Num - rv.Num
	case ast.OpMul:
		out = lv.Num * rv.Num
	case ast.OpDiv:
		if rv.Num == 0 {
			return Value{}, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		out = lv.Num / rv.Num
	case ast.OpMod:
		if rv.Num == 0 {
			return Value{}, fmt.Errorf("%w: modulo by zero", ErrArithmetic)
		}
		out = math.Mod(lv.Num, rv.Num)
	default:
		return Value{}, fmt.Errorf("%w: unknown arithmetic op %q", ErrTypeMismatch, a.Op)
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return Value{}, fmt.Errorf("%w: result out of numeric range", ErrArithmetic)
	}
	return NumVal(out), nil
}

func (e *Evaluator) evalMembership(m *ast.Membership, ctx Context, depth int) (Value, error) {
	item, err := e.eval(m.Item, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	target, err := e.eval(m.List, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	if target.Kind != KindSet {
		return Value{}, fmt.Errorf("%w: membership target must be a set, got %s", ErrTypeMismatch, target.Kind)
	}
	contained := false
	for _, candidate := range target.Set {
		if candidate.Equal(item) {
			contained = true
			break
		}
	}
	switch m.Op {
	case ast.OpIn:
		return BoolVal(contained), nil
	case ast.OpNotIn:
		return BoolVal(!contained), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown membership op %q", ErrTypeMismatch, m.Op)
	}
}

func (e *Evaluator) evalContains(c *ast.Contains, ctx Context, depth int) (Value, error) {
	container, err := e.eval(c.Container, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	value, err := e.eval(c.Value, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	switch container.Kind {
	case KindString:
		if value.Kind != KindString {
			return Value{}, fmt.Errorf("%w: string contains expects a string, got %s", ErrTypeMismatch, value.Kind)
		}
		return BoolVal(strings.Contains(container.Str, value.Str)), nil
	case KindSet:
		for _, item := range container.Set {
			if item.Equal(value) {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	default:
		return Value{}, fmt.Errorf("%w: contains expects a string or set container, got %s", ErrTypeMismatch, container.Kind)
	}
}

func (e *Evaluator) evalRegex(r *ast.RegexMatch, ctx Context, depth int) (Value, error) {
	subject, err := e.eval(r.Subject, ctx, depth)
	if err != nil {
		return Value{}, err
	}
	if subject.Kind != KindString {
		return Value{}, fmt.Errorf("%w: regex match needs a string subject, got %s", ErrTypeMismatch, subject.Kind)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s", ErrBadRegex, err)
	}
	return BoolVal(re.MatchString(subject.Str)), nil
}

func (e *Evaluator) evalCall(c *ast.Call, ctx Context, depth int) (Value, error) {
	// Special form: exists(field) reports whether the field is bound in
	// the context, without failing on absence.
	if c.Name == "exists" && len(c.Args) == 1 {
		if f, ok := c.Args[0].(*ast.Field); ok {
			return BoolVal(ctx.Has(f.Dotted())), nil
		}
	}

	if e.Registry == nil {
		return Value{}, fmt.Errorf("%w: %s (no registry)", ErrUnknownFunction, c.Name)
	}
	entry, ok := e.Registry.Lookup(c.Name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownFunction, c.Name)
	}

	if len(entry.Signature.Params) != len(c.Args) {
		return Value{}, fmt.Errorf("%w: %s expects %d args, got %d",
			ErrArityMismatch, c.Name, len(entry.Signature.Params), len(c.Args))
	}

	args := make([]Value, 0, len(c.Args))
	for i, argNode := range c.Args {
		v, err := e.eval(argNode, ctx, depth)
		if err != nil {
			return Value{}, err
		}
		if !kindSatisfies(entry.Signature.Params[i].Kind, v.Kind) {
			return Value{}, fmt.Errorf("%w: arg %d of %s expects %s, got %s",
				ErrTypeMismatch, i, c.Name, entry.Signature.Params[i], v.Kind)
		}
		args = append(args, v)
	}

	return e.invoke(c.Name, entry.Fn, args)
}

// invoke runs a registered function, enforcing the per-call wall-clock
// budget when one is configured.
func (e *Evaluator) invoke(name string, fn Func, args []Value) (Value, error) {
	if e.CallBudget <= 0 {
		return fn(args)
	}

	type callResult struct {
		v   Value
		err error
	}
	done := make(chan callResult, 1)
	go func() {
		v, err := fn(args)
		done <- callResult{v, err}
	}()

	timer := time.NewTimer(e.CallBudget)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return Value{}, fmt.Errorf("%w: %s after %s", ErrFunctionTimeout, name, e.CallBudget)
	}
}

func (e *Evaluator) evalRef(r *ast.ExprRef, ctx Context, depth int) (Value, error) {
	if depth+1 > e.maxDepth() {
		return Value{}, fmt.Errorf("%w: more than %d nested references", ErrDepthExceeded, e.maxDepth())
	}
	if e.Resolver == nil {
		return Value{}, fmt.Errorf("%w: no resolver for nested expression %s", ErrTypeMismatch, r.DepKey())
	}
	target, err := e.Resolver.ResolveExpr(r)
	if err != nil {
		return Value{}, fmt.Errorf("resolving %s: %w", r.DepKey(), err)
	}
	return e.eval(target, ctx, depth+1)
}

func literalValue(l *ast.Literal, ctx Context, depth int, e *Evaluator) (Value, error) {
	switch l.Type {
	case ast.LitBool:
		return BoolVal(l.BoolV), nil
	case ast.LitNumber:
		return NumVal(l.Number), nil
	case ast.LitString:
		return StrVal(l.Str), nil
	case ast.LitNull:
		return NullVal(), nil
	case ast.LitList:
		items := make([]Value, 0, len(l.List))
		for _, item := range l.List {
			v, err := e.eval(item, ctx, depth)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return SetVal(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown literal type %q", ErrTypeMismatch, l.Type)
	}
}

func asBool(v Value) (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("%w: expected bool, got %s", ErrTypeMismatch, v.Kind)
	}
	return v.Bool, nil
}

// kindSatisfies checks a runtime value kind against a declared parameter
// kind, mirroring the static checker's assignability rule: only a
// parameter declared any accepts null. Nullable data bound for a typed
// parameter fails the call explicitly instead of reaching the
// implementation.
func kindSatisfies(param, got string) bool {
	return param == "any" || param == got
}
