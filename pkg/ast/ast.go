// Package ast defines the expression AST consumed by the ledger, the
// typechecker, and the evaluator, together with its canonical JSON form,
// content hashing, and static dependency extraction.
//
// The parser that produces these nodes from DSL text lives outside this
// module; everything here operates on already-parsed expressions.
package ast

import (
	"fmt"
	"strings"
)

// Node kinds as they appear in the canonical JSON "kind" field.
const (
	KindLiteral    = "literal"
	KindField      = "field"
	KindNot        = "not"
	KindLogical    = "logical"
	KindCompare    = "compare"
	KindMembership = "membership"
	KindContains   = "contains"
	KindRegexMatch = "regex_match"
	KindCall       = "call"
	KindArith      = "arith"
	KindExprRef    = "expr_ref"
)

// Node is implemented by every expression AST node.
type Node interface {
	Kind() string
}

// Literal value types.
const (
	LitBool   = "bool"
	LitNumber = "number"
	LitString = "string"
	LitNull   = "null"
	LitList   = "list"
)

// Literal is a constant value. Exactly one of the value fields is
// meaningful, selected by Type. List elements are Literal or Field nodes.
type Literal struct {
	Type   string
	BoolV  bool
	Number float64
	Str    string
	List   []Node
}

func (*Literal) Kind() string { return KindLiteral }

// Bool returns a boolean literal.
func Bool(b bool) *Literal { return &Literal{Type: LitBool, BoolV: b} }

// Num returns a numeric literal.
func Num(n float64) *Literal { return &Literal{Type: LitNumber, Number: n} }

// Str returns a string literal.
func Str(s string) *Literal { return &Literal{Type: LitString, Str: s} }

// Null returns the null literal.
func Null() *Literal { return &Literal{Type: LitNull} }

// List returns a list literal. Elements must be *Literal or *Field nodes.
func List(items ...Node) *Literal { return &Literal{Type: LitList, List: items} }

// Field is a dotted path reference like customer.is_known. The path is kept
// split to avoid repeated parsing.
type Field struct {
	Path []string
}

func (*Field) Kind() string { return KindField }

// FieldRef builds a Field from a dotted string.
func FieldRef(dotted string) *Field {
	return &Field{Path: strings.Split(dotted, ".")}
}

// Dotted returns the path joined with dots, the form used as a dependency
// key and as an evaluation context key.
func (f *Field) Dotted() string { return strings.Join(f.Path, ".") }

// Not negates a boolean operand.
type Not struct {
	Expr Node
}

func (*Not) Kind() string { return KindNot }

// Logical operators. Both short-circuit at evaluation time.
const (
	OpAnd = "and"
	OpOr  = "or"
)

// Logical is a binary boolean combination.
type Logical struct {
	Op  string
	LHS Node
	RHS Node
}

func (*Logical) Kind() string { return KindLogical }

// Comparison operators.
const (
	OpEq = "=="
	OpNe = "!="
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
)

// Compare is a binary comparison.
type Compare struct {
	Op  string
	LHS Node
	RHS Node
}

func (*Compare) Kind() string { return KindCompare }

// Membership operators.
const (
	OpIn    = "in"
	OpNotIn = "not_in"
)

// Membership tests whether Item occurs in List.
type Membership struct {
	Op   string
	Item Node
	List Node
}

func (*Membership) Kind() string { return KindMembership }

// Contains tests whether Container (string or set) contains Value.
type Contains struct {
	Container Node
	Value     Node
}

func (*Contains) Kind() string { return KindContains }

// RegexMatch tests Subject against a regular expression pattern.
type RegexMatch struct {
	Subject Node
	Pattern string
}

func (*RegexMatch) Kind() string { return KindRegexMatch }

// Call invokes a named function from the function registry.
type Call struct {
	Name string
	Args []Node
}

func (*Call) Kind() string { return KindCall }

// Arithmetic operators.
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpMod = "%"
)

// Arith is a binary numeric operation.
type Arith struct {
	Op  string
	LHS Node
	RHS Node
}

func (*Arith) Kind() string { return KindArith }

// ExprRef references another stored expression, either pinned to a specific
// version or through a mutable (chronicle, label) pointer. Exactly one of
// the two forms is populated: VersionID for pinned refs, ChronicleID plus
// Label for by-label refs.
type ExprRef struct {
	VersionID   string
	ChronicleID string
	Label       string
}

func (*ExprRef) Kind() string { return KindExprRef }

// Pinned reports whether the reference names a fixed version.
func (r *ExprRef) Pinned() bool { return r.VersionID != "" }

// DepKey returns the dependency key for this reference: the version id for
// pinned refs, or the label:<chronicle>/<label> composite for by-label refs.
func (r *ExprRef) DepKey() string {
	if r.Pinned() {
		return r.VersionID
	}
	return "label:" + r.ChronicleID + "/" + r.Label
}

// ParseExprKey parses a dependency key produced by DepKey back into an
// ExprRef. Keys without the label: prefix are pinned version ids.
func ParseExprKey(key string) (*ExprRef, error) {
	if !strings.HasPrefix(key, "label:") {
		if key == "" {
			return nil, fmt.Errorf("empty expression key")
		}
		return &ExprRef{VersionID: key}, nil
	}
	rest := strings.TrimPrefix(key, "label:")
	chronicle, label, ok := strings.Cut(rest, "/")
	if !ok || chronicle == "" || label == "" {
		return nil, fmt.Errorf("malformed expression key %q", key)
	}
	return &ExprRef{ChronicleID: chronicle, Label: label}, nil
}
