// Package ledger is the service layer over the expression store: version
// creation with typechecking and dependency extraction, label resolution,
// cycle detection, impact-gated label repoints, and evaluation. The store
// enforces row-level invariants; this package enforces the graph-level
// ones.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/dictionary"
	"github.com/mesh-intelligence/chronicle/pkg/eval"
	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Service coordinates the expression ledger. All graph-level invariants
// (acyclicity of by-label references, impact-gated repoints) are enforced
// here, on top of the store's transactional guarantees.
type Service struct {
	store     types.Store
	snapshots dictionary.Provider
	registry  *eval.Registry
	labels    keyLocker

	// MaxDepth bounds nested expression resolution during evaluation;
	// 0 means eval.DefaultMaxDepth.
	MaxDepth int

	// CallBudget is the wall-clock budget for a single registered
	// function call during evaluation; 0 means unbounded.
	CallBudget time.Duration
}

// New creates a Service over an attached store. A nil registry gets a
// fresh one preloaded with the builtin functions.
func New(store types.Store, snapshots dictionary.Provider, registry *eval.Registry) *Service {
	if registry == nil {
		registry = eval.NewRegistry()
	}
	return &Service{
		store:     store,
		snapshots: snapshots,
		registry:  registry,
	}
}

// Registry returns the service's function registry. Functions registered
// here become callable in subsequently checked and evaluated expressions.
func (s *Service) Registry() *eval.Registry {
	return s.registry
}

// RegisterFunction adds or replaces a function in the registry.
func (s *Service) RegisterFunction(name string, sig typecheck.Signature, fn eval.Func) {
	s.registry.Register(name, sig, fn)
}

// CreateRequest carries the inputs of a version creation. The AST comes
// from an external parser; the service typechecks it, extracts its
// dependencies, and appends it to the chronicle.
type CreateRequest struct {
	ChronicleID          string
	AntecedentID         string
	BranchID             string
	DSLText              string
	AST                  ast.Node
	DictionarySnapshotID string
	CreatedBy            string
}

// CreateVersion typechecks the expression against its dictionary
// snapshot, extracts dependencies, verifies that joining the current
// reference graph introduces no cycle, and appends the version with its
// dependency and usage rows in one transaction. Identical content under
// the same antecedent returns the existing version.
func (s *Service) CreateVersion(req CreateRequest) (*types.ExpressionVersion, error) {
	if req.ChronicleID == "" {
		return nil, fmt.Errorf("chronicle id: %w", types.ErrInvalidID)
	}
	if req.AST == nil || req.DictionarySnapshotID == "" {
		return nil, types.ErrInvalidData
	}

	snap, err := s.snapshots.Snapshot(req.DictionarySnapshotID)
	if err != nil {
		return nil, err
	}
	if _, err := typecheck.Infer(req.AST, s.dict(snap), s.refTypes(nil, 0)); err != nil {
		return nil, fmt.Errorf("typechecking expression: %w", err)
	}

	hash, err := ast.Hash(req.AST)
	if err != nil {
		return nil, fmt.Errorf("hashing expression: %w", err)
	}

	if err := s.checkCycle(req.ChronicleID, req.AST, nil); err != nil {
		return nil, err
	}

	versionID := newID()
	deps, usages := s.depRows(req.ChronicleID, versionID, req.AST)

	v := &types.ExpressionVersion{
		VersionID:            versionID,
		ChronicleID:          req.ChronicleID,
		AntecedentID:         req.AntecedentID,
		BranchID:             req.BranchID,
		DSLText:              req.DSLText,
		AST:                  req.AST,
		ASTHash:              hash,
		DictionarySnapshotID: req.DictionarySnapshotID,
		CreatedBy:            req.CreatedBy,
	}
	return s.store.CreateVersion(v, deps, usages)
}

// Fork clones a version into a new chronicle, recording provenance via
// the branch pointer. The fork starts a fresh root; it inherits the
// source's content and dictionary snapshot but none of its history.
func (s *Service) Fork(sourceVersionID, newChronicleID, createdBy string) (*types.ExpressionVersion, error) {
	source, err := s.store.GetVersion(sourceVersionID)
	if err != nil {
		return nil, err
	}
	if newChronicleID == source.ChronicleID {
		return nil, fmt.Errorf("fork target is the source chronicle: %w", types.ErrInvalidData)
	}
	return s.CreateVersion(CreateRequest{
		ChronicleID:          newChronicleID,
		BranchID:             source.VersionID,
		DSLText:              source.DSLText,
		AST:                  source.AST,
		DictionarySnapshotID: source.DictionarySnapshotID,
		CreatedBy:            createdBy,
	})
}

// Resolve returns the version a reference currently names. Pinned
// resolution is stable; by-label resolution reads the label directory and
// may yield different versions at different times.
func (s *Service) Resolve(ref types.Ref) (*types.ExpressionVersion, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return s.resolveRef(&ast.ExprRef{
		VersionID:   ref.VersionID,
		ChronicleID: ref.ChronicleID,
		Label:       ref.LabelName,
	}, nil)
}

// GetVersion retrieves a version by id.
func (s *Service) GetVersion(versionID string) (*types.ExpressionVersion, error) {
	return s.store.GetVersion(versionID)
}

// ListVersions returns a chronicle's versions, oldest first.
func (s *Service) ListVersions(chronicleID string) ([]*types.ExpressionVersion, error) {
	return s.store.ListVersions(chronicleID)
}

// GetLabel returns the current label directory row.
func (s *Service) GetLabel(chronicleID, labelName string) (*types.Label, error) {
	return s.store.GetLabel(chronicleID, labelName)
}

// ListLabels returns a chronicle's labels.
func (s *Service) ListLabels(chronicleID string) ([]*types.Label, error) {
	return s.store.ListLabels(chronicleID)
}

// Dependencies returns a version's extracted dependency set.
func (s *Service) Dependencies(versionID string) ([]types.Dependency, error) {
	return s.store.ListDependencies(versionID)
}

// RetireChronicle deletes a chronicle's versions, labels, dependencies,
// and outgoing usage entries, refusing while external referencers remain.
func (s *Service) RetireChronicle(chronicleID string) error {
	return s.store.RetireChronicle(chronicleID)
}

// depRows converts an AST's extracted dependencies into dependency rows
// plus the mirrored usage entries for its expression-type dependencies.
func (s *Service) depRows(chronicleID, versionID string, node ast.Node) ([]types.Dependency, []types.Usage) {
	extracted := ast.Extract(node)
	deps := make([]types.Dependency, 0, len(extracted))
	var usages []types.Usage
	for _, d := range extracted {
		deps = append(deps, types.Dependency{
			VersionID: versionID,
			Type:      d.Type,
			Key:       d.Key,
		})
		if d.Type != ast.DepExpression {
			continue
		}
		ref, err := ast.ParseExprKey(d.Key)
		if err != nil {
			continue
		}
		u := types.Usage{
			ReferencerType:      types.ReferencerExpression,
			ReferencerID:        chronicleID,
			ReferencerVersionID: versionID,
			Role:                "subexpression",
		}
		if ref.Pinned() {
			u.RefKind = types.RefPinned
			u.VersionID = ref.VersionID
		} else {
			u.RefKind = types.RefByLabel
			u.ChronicleID = ref.ChronicleID
			u.LabelName = ref.Label
		}
		usages = append(usages, u)
	}
	return deps, usages
}

// resolveRef resolves an AST expression reference, honoring a prospective
// label override map keyed by "chronicle/label".
func (s *Service) resolveRef(ref *ast.ExprRef, override map[string]string) (*types.ExpressionVersion, error) {
	if ref.Pinned() {
		return s.store.GetVersion(ref.VersionID)
	}
	if versionID, ok := override[labelKey(ref.ChronicleID, ref.Label)]; ok {
		return s.store.GetVersion(versionID)
	}
	label, err := s.store.GetLabel(ref.ChronicleID, ref.Label)
	if err != nil {
		return nil, err
	}
	return s.store.GetVersion(label.VersionID)
}

// dict composes the field half of a dictionary snapshot with the
// registry's function signatures into one typecheck dictionary.
func (s *Service) dict(snap *dictionary.Snapshot) typecheck.Dictionary {
	return checkDict{snap: snap, registry: s.registry}
}

type checkDict struct {
	snap     *dictionary.Snapshot
	registry *eval.Registry
}

func (d checkDict) FieldType(path string) (typecheck.Type, bool) {
	return d.snap.FieldType(path)
}

func (d checkDict) FunctionSignature(name string) (typecheck.Signature, bool) {
	return d.registry.FunctionSignature(name)
}

func labelKey(chronicleID, labelName string) string {
	return chronicleID + "/" + labelName
}

// newID generates a version id, UUID v7 with a v4 fallback.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
