package types

import (
	"fmt"
	"strings"
)

// CycleError reports that following expression-type dependency edges,
// with by-label edges resolved to their current targets, returned to a
// version already on the walk. Path lists the version ids in walk order,
// ending with the revisited one.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// ImpactReport describes one dependent that would break if a label moved
// to its prospective target.
type ImpactReport struct {
	ReferencerType      string
	ReferencerID        string
	ReferencerVersionID string
	Reason              string
}

// ImpactBlockedError reports that a label repoint was refused because it
// would break statically known dependents. It carries the full dependent
// list; the label directory is untouched when this is returned.
type ImpactBlockedError struct {
	ChronicleID string
	LabelName   string
	Reports     []ImpactReport
}

func (e *ImpactBlockedError) Error() string {
	return fmt.Sprintf("repoint of %s/%s blocked: %d dependent(s) would break",
		e.ChronicleID, e.LabelName, len(e.Reports))
}
