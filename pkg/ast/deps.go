package ast

import "sort"

// Dependency types for statically extracted references.
const (
	DepField      = "field"
	DepFunction   = "function"
	DepExpression = "expression"
)

// Dep is one statically extracted (type, key) reference.
type Dep struct {
	Type string
	Key  string
}

// Extract walks the AST and returns the set of fields, functions, and
// nested expressions it references. The result is deduplicated and sorted
// by (type, key) so extraction is deterministic for a given AST. Pure
// function: no I/O, every reachable node visited once.
func Extract(n Node) []Dep {
	seen := make(map[Dep]struct{})
	walk(n, seen)

	deps := make([]Dep, 0, len(seen))
	for d := range seen {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Type != deps[j].Type {
			return deps[i].Type < deps[j].Type
		}
		return deps[i].Key < deps[j].Key
	})
	return deps
}

func walk(n Node, seen map[Dep]struct{}) {
	switch t := n.(type) {
	case *Literal:
		for _, item := range t.List {
			walk(item, seen)
		}
	case *Field:
		seen[Dep{Type: DepField, Key: t.Dotted()}] = struct{}{}
	case *Not:
		walk(t.Expr, seen)
	case *Logical:
		walk(t.LHS, seen)
		walk(t.RHS, seen)
	case *Compare:
		walk(t.LHS, seen)
		walk(t.RHS, seen)
	case *Arith:
		walk(t.LHS, seen)
		walk(t.RHS, seen)
	case *Membership:
		walk(t.Item, seen)
		walk(t.List, seen)
	case *Contains:
		walk(t.Container, seen)
		walk(t.Value, seen)
	case *RegexMatch:
		walk(t.Subject, seen)
	case *Call:
		seen[Dep{Type: DepFunction, Key: t.Name}] = struct{}{}
		for _, a := range t.Args {
			walk(a, seen)
		}
	case *ExprRef:
		seen[Dep{Type: DepExpression, Key: t.DepKey()}] = struct{}{}
	}
}
