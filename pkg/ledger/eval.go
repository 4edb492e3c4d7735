package ledger

import (
	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/eval"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Evaluate resolves a reference and evaluates the resolved version's AST
// against the data context. By-label references resolve through the label
// directory at call time; a concurrent repoint is observed either
// entirely before or entirely after, never half-applied.
func (s *Service) Evaluate(ref types.Ref, ctx eval.Context) (eval.Value, error) {
	v, err := s.Resolve(ref)
	if err != nil {
		return eval.Value{}, err
	}
	return s.EvaluateVersion(v, ctx)
}

// EvaluateVersion evaluates a loaded version's AST against the data
// context. Nested expression references resolve through the ledger.
func (s *Service) EvaluateVersion(v *types.ExpressionVersion, ctx eval.Context) (eval.Value, error) {
	ev := &eval.Evaluator{
		Registry:   s.registry,
		Resolver:   ledgerResolver{s: s},
		MaxDepth:   s.MaxDepth,
		CallBudget: s.CallBudget,
	}
	return ev.Evaluate(v.AST, ctx)
}

// ledgerResolver adapts the service to the evaluator's reference
// resolver.
type ledgerResolver struct {
	s *Service
}

func (r ledgerResolver) ResolveExpr(ref *ast.ExprRef) (ast.Node, error) {
	v, err := r.s.resolveRef(ref, nil)
	if err != nil {
		return nil, err
	}
	return v.AST, nil
}
