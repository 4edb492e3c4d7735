// Package typecheck infers the result type of an expression AST against a
// dictionary snapshot of known fields and function signatures. The ledger
// runs it at save time and again during impact analysis, before a label is
// allowed to move.
package typecheck

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
)

// Type kinds.
const (
	KindBool   = "bool"
	KindNumber = "number"
	KindString = "string"
	KindNull   = "null"
	KindSet    = "set"
	KindAny    = "any"
)

// Type describes an expression or field type. Elem is the element kind for
// sets and empty otherwise.
type Type struct {
	Kind string
	Elem string
}

// Shorthand constructors for the common types.
var (
	Bool   = Type{Kind: KindBool}
	Number = Type{Kind: KindNumber}
	String = Type{Kind: KindString}
	Null   = Type{Kind: KindNull}
	Any    = Type{Kind: KindAny}
)

// SetOf returns a set type with the given element kind.
func SetOf(elem string) Type { return Type{Kind: KindSet, Elem: elem} }

// String renders the type in the set<elem> notation used by dictionary
// snapshot files.
func (t Type) String() string {
	if t.Kind == KindSet {
		if t.Elem == "" {
			return "set<any>"
		}
		return "set<" + t.Elem + ">"
	}
	return t.Kind
}

// Signature is a function's parameter and result types.
type Signature struct {
	Params []Type
	Result Type
}

// Dictionary resolves field types and function signatures for one
// dictionary snapshot. Implementations must be stable for the lifetime of a
// check: the same snapshot id always yields the same answers.
type Dictionary interface {
	// FieldType returns the type of a dotted field path, and whether the
	// field is known at all.
	FieldType(path string) (Type, bool)

	// FunctionSignature returns the signature registered for a function
	// name, and whether the name is known.
	FunctionSignature(name string) (Signature, bool)
}

// RefTypes resolves the result type of a nested expression reference. The
// ledger implements this by resolving the reference to a version and
// inferring that version's AST; impact analysis substitutes a prospective
// label target before re-checking dependents.
type RefTypes interface {
	RefType(ref *ast.ExprRef) (Type, error)
}

// Check failures. Infer wraps these with positional detail.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownFunction = errors.New("unknown function")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrArityMismatch   = errors.New("arity mismatch")
	ErrInvalidRegex    = errors.New("invalid regex")
)

// Infer returns the result type of the expression, or the first type error
// found. Expressions are not required to be boolean at the top level; a
// stored version may compute a number or a string, and label dependents are
// checked against whatever type the target produces.
func Infer(n ast.Node, dict Dictionary, refs RefTypes) (Type, error) {
	switch t := n.(type) {
	case *ast.Literal:
		return literalType(t), nil
	case *ast.Field:
		ft, ok := dict.FieldType(t.Dotted())
		if !ok {
			return Type{}, fmt.Errorf("%w: %s", ErrUnknownField, t.Dotted())
		}
		return ft, nil
	case *ast.Not:
		inner, err := Infer(t.Expr, dict, refs)
		if err != nil {
			return Type{}, err
		}
		if err := ensureBool(inner, "operand of !"); err != nil {
			return Type{}, err
		}
		return Bool, nil
	case *ast.Logical:
		for _, operand := range []ast.Node{t.LHS, t.RHS} {
			ot, err := Infer(operand, dict, refs)
			if err != nil {
				return Type{}, err
			}
			if err := ensureBool(ot, "operand of "+t.Op); err != nil {
				return Type{}, err
			}
		}
		return Bool, nil
	case *ast.Compare:
		return inferCompare(t, dict, refs)
	case *ast.Arith:
		for _, operand := range []ast.Node{t.LHS, t.RHS} {
			ot, err := Infer(operand, dict, refs)
			if err != nil {
				return Type{}, err
			}
			if ot.Kind != KindNumber && ot.Kind != KindAny {
				return Type{}, fmt.Errorf("%w: %s expects numbers, got %s", ErrTypeMismatch, t.Op, ot)
			}
		}
		return Number, nil
	case *ast.Membership:
		return inferMembership(t, dict, refs)
	case *ast.Contains:
		return inferContains(t, dict, refs)
	case *ast.RegexMatch:
		st, err := Infer(t.Subject, dict, refs)
		if err != nil {
			return Type{}, err
		}
		if st.Kind != KindString && st.Kind != KindAny {
			return Type{}, fmt.Errorf("%w: regex match needs a string subject, got %s", ErrTypeMismatch, st)
		}
		if _, err := regexp.Compile(t.Pattern); err != nil {
			return Type{}, fmt.Errorf("%w: %s", ErrInvalidRegex, err)
		}
		return Bool, nil
	case *ast.Call:
		// exists(field) is a special form: the evaluator probes the data
		// context for the binding instead of dispatching through the
		// registry, so it carries no registered signature. The field must
		// still be known to the dictionary; exists answers runtime
		// absence, not schema membership.
		if t.Name == "exists" {
			if len(t.Args) != 1 {
				return Type{}, fmt.Errorf("%w: exists expects 1 arg, got %d",
					ErrArityMismatch, len(t.Args))
			}
			f, ok := t.Args[0].(*ast.Field)
			if !ok {
				return Type{}, fmt.Errorf("%w: exists expects a field reference", ErrTypeMismatch)
			}
			if _, ok := dict.FieldType(f.Dotted()); !ok {
				return Type{}, fmt.Errorf("%w: %s", ErrUnknownField, f.Dotted())
			}
			return Bool, nil
		}

		sig, ok := dict.FunctionSignature(t.Name)
		if !ok {
			return Type{}, fmt.Errorf("%w: %s", ErrUnknownFunction, t.Name)
		}
		if len(sig.Params) != len(t.Args) {
			return Type{}, fmt.Errorf("%w: %s expects %d args, got %d",
				ErrArityMismatch, t.Name, len(sig.Params), len(t.Args))
		}
		for i, arg := range t.Args {
			at, err := Infer(arg, dict, refs)
			if err != nil {
				return Type{}, err
			}
			if !assignable(sig.Params[i], at) {
				return Type{}, fmt.Errorf("%w: arg %d of %s expects %s, got %s",
					ErrTypeMismatch, i, t.Name, sig.Params[i], at)
			}
		}
		return sig.Result, nil
	case *ast.ExprRef:
		if refs == nil {
			return Type{}, fmt.Errorf("%w: expression references not resolvable here", ErrTypeMismatch)
		}
		return refs.RefType(t)
	default:
		return Type{}, fmt.Errorf("%w: unknown node %T", ErrTypeMismatch, n)
	}
}

func inferCompare(c *ast.Compare, dict Dictionary, refs RefTypes) (Type, error) {
	lt, err := Infer(c.LHS, dict, refs)
	if err != nil {
		return Type{}, err
	}
	rt, err := Infer(c.RHS, dict, refs)
	if err != nil {
		return Type{}, err
	}

	// Null is comparable to anything, but only for equality.
	if lt.Kind == KindNull || rt.Kind == KindNull {
		if c.Op == ast.OpEq || c.Op == ast.OpNe {
			return Bool, nil
		}
		return Type{}, fmt.Errorf("%w: null supports only == and !=", ErrTypeMismatch)
	}
	if lt.Kind == KindAny || rt.Kind == KindAny {
		return Bool, nil
	}
	if lt.Kind != rt.Kind {
		return Type{}, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, lt, rt)
	}
	switch lt.Kind {
	case KindNumber, KindString:
		return Bool, nil
	case KindBool:
		if c.Op == ast.OpEq || c.Op == ast.OpNe {
			return Bool, nil
		}
		return Type{}, fmt.Errorf("%w: ordering not supported for bool", ErrTypeMismatch)
	default:
		return Type{}, fmt.Errorf("%w: %s values are not comparable", ErrTypeMismatch, lt)
	}
}

func inferMembership(m *ast.Membership, dict Dictionary, refs RefTypes) (Type, error) {
	it, err := Infer(m.Item, dict, refs)
	if err != nil {
		return Type{}, err
	}
	lt, err := Infer(m.List, dict, refs)
	if err != nil {
		return Type{}, err
	}
	if lt.Kind == KindAny {
		return Bool, nil
	}
	if lt.Kind != KindSet {
		return Type{}, fmt.Errorf("%w: membership target must be a set, got %s", ErrTypeMismatch, lt)
	}
	if lt.Elem != "" && lt.Elem != KindAny && it.Kind != KindAny && it.Kind != lt.Elem {
		return Type{}, fmt.Errorf("%w: %s not a member type of %s", ErrTypeMismatch, it, lt)
	}
	return Bool, nil
}

func inferContains(c *ast.Contains, dict Dictionary, refs RefTypes) (Type, error) {
	ct, err := Infer(c.Container, dict, refs)
	if err != nil {
		return Type{}, err
	}
	vt, err := Infer(c.Value, dict, refs)
	if err != nil {
		return Type{}, err
	}
	switch ct.Kind {
	case KindString:
		if vt.Kind == KindString || vt.Kind == KindAny {
			return Bool, nil
		}
		return Type{}, fmt.Errorf("%w: string contains expects a string, got %s", ErrTypeMismatch, vt)
	case KindSet:
		if ct.Elem == "" || ct.Elem == KindAny || vt.Kind == KindAny || vt.Kind == ct.Elem {
			return Bool, nil
		}
		return Type{}, fmt.Errorf("%w: %s cannot contain %s", ErrTypeMismatch, ct, vt)
	case KindAny:
		return Bool, nil
	default:
		return Type{}, fmt.Errorf("%w: contains expects a string or set container, got %s", ErrTypeMismatch, ct)
	}
}

func literalType(l *ast.Literal) Type {
	switch l.Type {
	case ast.LitBool:
		return Bool
	case ast.LitNumber:
		return Number
	case ast.LitString:
		return String
	case ast.LitNull:
		return Null
	case ast.LitList:
		return listLiteralType(l)
	default:
		return Any
	}
}

// listLiteralType infers set<elem> when all elements share a literal kind,
// set<any> otherwise. Field elements are resolved at check time against the
// dictionary, so a bare list literal stays permissive here.
func listLiteralType(l *ast.Literal) Type {
	elem := ""
	for _, item := range l.List {
		lit, ok := item.(*ast.Literal)
		if !ok {
			return SetOf(KindAny)
		}
		kind := literalType(lit).Kind
		if elem == "" {
			elem = kind
			continue
		}
		if elem != kind {
			return SetOf(KindAny)
		}
	}
	if elem == "" {
		elem = KindAny
	}
	return SetOf(elem)
}

func ensureBool(t Type, where string) error {
	if t.Kind != KindBool && t.Kind != KindAny {
		return fmt.Errorf("%w: %s must be bool, got %s", ErrTypeMismatch, where, t)
	}
	return nil
}

// assignable reports whether an argument of type got satisfies a declared
// parameter type want. Any is permissive on both sides.
func assignable(want, got Type) bool {
	if want.Kind == KindAny || got.Kind == KindAny {
		return true
	}
	if want.Kind != got.Kind {
		return false
	}
	if want.Kind == KindSet {
		return want.Elem == "" || want.Elem == KindAny || got.Elem == "" || got.Elem == KindAny || want.Elem == got.Elem
	}
	return true
}
