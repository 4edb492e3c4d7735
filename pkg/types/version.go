package types

import (
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
)

// ExpressionVersion is one immutable, content-addressed snapshot of an
// expression. Versions belong to exactly one chronicle and link into a
// tree: AntecedentID names the prior version in the same chronicle,
// BranchID names the version (possibly in another chronicle) this one was
// forked from. Once written a version is never updated or deleted, except
// by retiring its whole chronicle.
type ExpressionVersion struct {
	VersionID            string    // UUID v7, assigned on creation.
	ChronicleID          string    // Grouping key for the version tree.
	AntecedentID         string    // Prior version in the same chronicle; empty for roots.
	BranchID             string    // Fork source version; empty unless forked.
	DSLText              string    // The authored source text.
	AST                  ast.Node  // Parsed expression.
	ASTHash              string    // sha256 of the canonical AST encoding.
	DictionarySnapshotID string    // Schema snapshot the version was checked against.
	CreatedBy            string    // Author provenance.
	CreatedAt            time.Time // Timestamp of creation.
}

// Root reports whether the version starts a lineage (no antecedent).
func (v *ExpressionVersion) Root() bool { return v.AntecedentID == "" }

// Forked reports whether the version was cloned from another version.
func (v *ExpressionVersion) Forked() bool { return v.BranchID != "" }

// RefKind discriminates how an expression is referenced.
type RefKind string

const (
	RefPinned  RefKind = "pinned"
	RefByLabel RefKind = "by_label"
)

// Ref identifies an expression either by a fixed version id or through a
// mutable (chronicle, label) pointer. Exactly one form is populated.
type Ref struct {
	Kind        RefKind
	VersionID   string
	ChronicleID string
	LabelName   string
}

// PinnedRef returns a reference fixed to one version.
func PinnedRef(versionID string) Ref {
	return Ref{Kind: RefPinned, VersionID: versionID}
}

// LabelRef returns a reference that resolves through the label directory.
func LabelRef(chronicleID, labelName string) Ref {
	return Ref{Kind: RefByLabel, ChronicleID: chronicleID, LabelName: labelName}
}

// RefFromNode converts an AST expression-reference node to a Ref.
func RefFromNode(n *ast.ExprRef) Ref {
	if n.Pinned() {
		return PinnedRef(n.VersionID)
	}
	return LabelRef(n.ChronicleID, n.Label)
}

// Validate checks the exactly-one-form invariant.
func (r Ref) Validate() error {
	switch r.Kind {
	case RefPinned:
		if r.VersionID == "" || r.ChronicleID != "" || r.LabelName != "" {
			return ErrInvalidRef
		}
	case RefByLabel:
		if r.VersionID != "" || r.ChronicleID == "" || r.LabelName == "" {
			return ErrInvalidRef
		}
	default:
		return ErrInvalidRef
	}
	return nil
}
