package eval

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
)

// Func is a callable function implementation. Implementations should be
// deterministic and side-effect free; the evaluator may short-circuit past
// a call entirely.
type Func func(args []Value) (Value, error)

// Entry pairs a function's declared signature with its implementation.
type Entry struct {
	Signature typecheck.Signature
	Fn        Func
}

// Registry is the process-wide catalog of callable functions, keyed by flat
// name. Registration and lookup go through one mutex so a concurrent
// evaluation never observes a half-registered entry.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Entry
}

// NewRegistry returns a registry preloaded with the builtin functions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Entry)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces the entry for name. Replacement is atomic with
// respect to concurrent lookups.
func (r *Registry) Register(name string, sig typecheck.Signature, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = Entry{Signature: sig, Fn: fn}
}

// Lookup returns the entry for name, if registered.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.funcs[name]
	return e, ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FunctionSignature implements typecheck.Dictionary's function half, so a
// registry can back typechecking of function calls directly.
func (r *Registry) FunctionSignature(name string) (typecheck.Signature, bool) {
	e, ok := r.Lookup(name)
	return e.Signature, ok
}

// registerBuiltins installs the builtin catalog. exists() is not here: it
// is a special form handled by the evaluator because it inspects context
// bindings rather than values.
func registerBuiltins(r *Registry) {
	r.Register("len",
		typecheck.Signature{Params: []typecheck.Type{typecheck.Any}, Result: typecheck.Number},
		func(args []Value) (Value, error) {
			switch args[0].Kind {
			case KindString:
				return NumVal(float64(len([]rune(args[0].Str)))), nil
			case KindSet:
				return NumVal(float64(len(args[0].Set))), nil
			default:
				return Value{}, fmt.Errorf("%w: len expects a string or set, got %s", ErrTypeMismatch, args[0].Kind)
			}
		})
}
