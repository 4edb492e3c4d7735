package types

import "time"

// Label is a mutable named pointer to one version within a chronicle.
// Consumers bind to (chronicle, label) instead of a fixed version, so the
// binding's meaning can move; the safe-mutation coordinator gates every
// move through impact analysis. The referenced version always belongs to
// the label's own chronicle.
type Label struct {
	ChronicleID string
	LabelName   string
	VersionID   string
	UpdatedAt   time.Time
}
