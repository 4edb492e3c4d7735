package eval

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
)

func TestRegisterAndCall(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double",
		typecheck.Signature{Params: []typecheck.Type{typecheck.Number}, Result: typecheck.Number},
		func(args []Value) (Value, error) {
			return NumVal(args[0].Num * 2), nil
		})

	e := &Evaluator{Registry: reg}
	got, err := e.Evaluate(&ast.Call{Name: "double", Args: []ast.Node{ast.Num(21)}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, NumVal(42), got)
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	sig := typecheck.Signature{Params: nil, Result: typecheck.Number}

	reg.Register("answer", sig, func(args []Value) (Value, error) { return NumVal(1), nil })
	reg.Register("answer", sig, func(args []Value) (Value, error) { return NumVal(42), nil })

	e := &Evaluator{Registry: reg}
	got, err := e.Evaluate(&ast.Call{Name: "answer"}, Context{})
	require.NoError(t, err)
	assert.Equal(t, NumVal(42), got)
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register("zeta", typecheck.Signature{Result: typecheck.Number}, func([]Value) (Value, error) { return NumVal(0), nil })
	reg.Register("alpha", typecheck.Signature{Result: typecheck.Number}, func([]Value) (Value, error) { return NumVal(0), nil })

	names := reg.Names()
	assert.Contains(t, names, "len")
	assert.Contains(t, names, "alpha")
	assert.Contains(t, names, "zeta")
	assert.IsIncreasing(t, names)
}

func TestRegistryAsDictionaryFunctions(t *testing.T) {
	reg := NewRegistry()
	sig, ok := reg.FunctionSignature("len")
	require.True(t, ok)
	assert.Equal(t, typecheck.Number, sig.Result)

	_, ok = reg.FunctionSignature("missing")
	assert.False(t, ok)
}

func TestConcurrentRegistrationAndLookup(t *testing.T) {
	reg := NewRegistry()
	sig := typecheck.Signature{Params: nil, Result: typecheck.Number}
	e := &Evaluator{Registry: reg}
	call := &ast.Call{Name: "counter"}

	reg.Register("counter", sig, func([]Value) (Value, error) { return NumVal(0), nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n float64) {
			defer wg.Done()
			reg.Register("counter", sig, func([]Value) (Value, error) { return NumVal(n), nil })
		}(float64(i))
		go func() {
			defer wg.Done()
			// Every observation is a fully registered entry: the call
			// either returns some registered value or never errors.
			v, err := e.Evaluate(call, Context{})
			assert.NoError(t, err)
			assert.Equal(t, KindNumber, v.Kind)
		}()
	}
	wg.Wait()
}
