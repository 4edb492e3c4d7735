// Package eval evaluates expression ASTs against a runtime data context and
// a process-wide function registry. Nested expression references are
// resolved through a Resolver supplied by the ledger.
package eval

import (
	"fmt"
	"strconv"
	"strings"
)

// Value kinds.
const (
	KindBool   = "bool"
	KindNumber = "number"
	KindString = "string"
	KindNull   = "null"
	KindSet    = "set"
)

// Value is a runtime value. Kind selects which payload field is meaningful.
// Kept small on purpose: the DSL's value space is bool, number, string,
// null, and flat sets.
type Value struct {
	Kind string
	Bool bool
	Num  float64
	Str  string
	Set  []Value
}

// Constructors.
func BoolVal(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func NumVal(n float64) Value     { return Value{Kind: KindNumber, Num: n} }
func StrVal(s string) Value      { return Value{Kind: KindString, Str: s} }
func NullVal() Value             { return Value{Kind: KindNull} }
func SetVal(items ...Value) Value { return Value{Kind: KindSet, Set: items} }

// Equal reports deep equality between two values. Sets compare element-wise
// in order.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	case KindNull:
		return true
	case KindSet:
		if len(v.Set) != len(o.Set) {
			return false
		}
		for i := range v.Set {
			if !v.Set[i].Equal(o.Set[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the value for diagnostics and CLI output.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	case KindNull:
		return "null"
	case KindSet:
		parts := make([]string, len(v.Set))
		for i, item := range v.Set {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// Context is the runtime data an expression evaluates against, keyed by
// dotted field path.
type Context map[string]Value

// Get returns the value bound to a dotted field path.
func (c Context) Get(field string) (Value, bool) {
	v, ok := c[field]
	return v, ok
}

// Has reports whether the field is bound, without reading it. Used by the
// exists() special form.
func (c Context) Has(field string) bool {
	_, ok := c[field]
	return ok
}
