package types

import "time"

// Referencer types recorded in the usage index. Expression versions that
// reference other expressions are indexed under ReferencerExpression;
// external consumers (rules, forms, reports) register their own types.
const (
	ReferencerExpression = "expression"
)

// Usage is one reverse-index entry: some referencer depends on an
// expression, either pinned to a version or through a (chronicle, label)
// pointer. Exactly one of the two target forms is populated, matching the
// Ref discriminant.
type Usage struct {
	RefKind     RefKind
	VersionID   string // set when RefKind == RefPinned
	ChronicleID string // set with LabelName when RefKind == RefByLabel
	LabelName   string

	ReferencerType      string
	ReferencerID        string
	ReferencerVersionID string
	Role                string // how the expression is used, e.g. "condition"
	Path                string // structural location within the referencer; optional
	RecordedAt          time.Time
}

// Target returns the usage's expression reference.
func (u Usage) Target() Ref {
	if u.RefKind == RefPinned {
		return PinnedRef(u.VersionID)
	}
	return LabelRef(u.ChronicleID, u.LabelName)
}

// Validate checks the discriminant and referencer identity.
func (u Usage) Validate() error {
	if err := u.Target().Validate(); err != nil {
		return err
	}
	if u.ReferencerType == "" || u.ReferencerID == "" || u.ReferencerVersionID == "" {
		return ErrInvalidData
	}
	return nil
}
