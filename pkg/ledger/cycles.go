package ledger

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// maxRefDepth bounds expression-reference recursion during typechecking
// and cycle walks, protecting against graphs mutated mid-check.
const maxRefDepth = 32

var errRefDepth = errors.New("expression reference depth exceeded")

// DetectCycle walks the expression-type dependency edges reachable from a
// stored version, resolving by-label edges to their current targets.
// Returns a CycleError when the walk revisits a version on its path, nil
// when the reachable graph is acyclic right now. The answer is
// point-in-time: label moves can invalidate it, which is why structural
// mutations re-run the check themselves.
func (s *Service) DetectCycle(versionID string) error {
	v, err := s.store.GetVersion(versionID)
	if err != nil {
		return err
	}
	return s.checkCycle(v.VersionID, v.AST, nil)
}

// checkCycle walks the expression-type dependency edges reachable from a
// candidate node, resolving by-label edges to their current target, or to
// the override when a prospective repoint is being tested. Revisiting a
// version already on the walk path is a cycle.
//
// Acyclicity is a point-in-time property: by-label edges move, so this
// runs at every structural mutation (version creation that adds an
// expression dependency, label repoint) rather than being cached.
func (s *Service) checkCycle(startID string, start ast.Node, override map[string]string) error {
	w := &cycleWalker{s: s, override: override, done: map[string]bool{}}
	return w.walk(start, []string{startID}, map[string]bool{startID: true})
}

type cycleWalker struct {
	s        *Service
	override map[string]string

	// done memoizes versions proven acyclic under the current edge set.
	done map[string]bool
}

func (w *cycleWalker) walk(node ast.Node, path []string, onPath map[string]bool) error {
	for _, d := range ast.Extract(node) {
		if d.Type != ast.DepExpression {
			continue
		}
		ref, err := ast.ParseExprKey(d.Key)
		if err != nil {
			return fmt.Errorf("dependency key %q: %w", d.Key, types.ErrInvalidData)
		}
		target, err := w.s.resolveRef(ref, w.override)
		if err != nil {
			return fmt.Errorf("resolving dependency %s: %w", d.Key, err)
		}
		if onPath[target.VersionID] {
			return &types.CycleError{Path: append(append([]string{}, path...), target.VersionID)}
		}
		if w.done[target.VersionID] {
			continue
		}
		onPath[target.VersionID] = true
		err = w.walk(target.AST, append(path, target.VersionID), onPath)
		delete(onPath, target.VersionID)
		if err != nil {
			return err
		}
		w.done[target.VersionID] = true
	}
	return nil
}

// refTypes builds the expression-reference type resolver used during
// typechecking. Each referenced version is inferred under its own
// dictionary snapshot, with the same label override the caller is
// testing.
func (s *Service) refTypes(override map[string]string, depth int) typecheck.RefTypes {
	return &refTypeResolver{s: s, override: override, depth: depth}
}

type refTypeResolver struct {
	s        *Service
	override map[string]string
	depth    int
}

func (r *refTypeResolver) RefType(ref *ast.ExprRef) (typecheck.Type, error) {
	if r.depth+1 > maxRefDepth {
		return typecheck.Type{}, errRefDepth
	}
	target, err := r.s.resolveRef(ref, r.override)
	if err != nil {
		return typecheck.Type{}, err
	}
	return r.s.inferType(target, r.override, r.depth+1)
}

// inferType computes a version's result type under its own dictionary
// snapshot.
func (s *Service) inferType(v *types.ExpressionVersion, override map[string]string, depth int) (typecheck.Type, error) {
	snap, err := s.snapshots.Snapshot(v.DictionarySnapshotID)
	if err != nil {
		return typecheck.Type{}, err
	}
	return typecheck.Infer(v.AST, s.dict(snap), s.refTypes(override, depth))
}
