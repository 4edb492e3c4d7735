package ledger

import (
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// RecordUsage registers that an external referencer depends on an
// expression. Pinned targets must exist; by-label targets may be recorded
// before the label is first assigned.
func (s *Service) RecordUsage(u types.Usage) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.RefKind == types.RefPinned {
		if _, err := s.store.GetVersion(u.VersionID); err != nil {
			return fmt.Errorf("usage target %s: %w", u.VersionID, err)
		}
	}
	return s.store.AddUsage(u)
}

// ReplaceUsage atomically swaps a referencer version's outgoing usage
// set. Called when a referencer publishes a new version of itself with
// different expression dependencies.
func (s *Service) ReplaceUsage(referencerType, referencerID, referencerVersionID string, usages []types.Usage) error {
	for _, u := range usages {
		if err := u.Target().Validate(); err != nil {
			return err
		}
	}
	return s.store.ReplaceUsage(referencerType, referencerID, referencerVersionID, usages)
}

// RemoveUsage withdraws every usage entry of a referencer, across all of
// its versions.
func (s *Service) RemoveUsage(referencerType, referencerID string) error {
	return s.store.RemoveUsage(referencerType, referencerID)
}

// QueryUsage returns the referencers of an expression reference: the
// entries pinned to a version, or the entries bound to a (chronicle,
// label) pointer.
func (s *Service) QueryUsage(ref types.Ref) ([]types.Usage, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.Kind == types.RefPinned {
		return s.store.UsageByVersion(ref.VersionID)
	}
	return s.store.UsageByLabel(ref.ChronicleID, ref.LabelName)
}
