package ledger

import (
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// RepointLabel moves a label to a new version, gated by the safety
// protocol: the target must belong to the label's chronicle, the
// prospective edge set must stay acyclic, and every by-label dependent
// must still typecheck against the new target. Any breaking dependent
// blocks the whole repoint; the label directory is untouched and the
// full report list is returned in an ImpactBlockedError.
//
// Repoints of the same (chronicle, label) are serialized; unrelated
// labels proceed concurrently.
func (s *Service) RepointLabel(chronicleID, labelName, newVersionID string) (*types.Label, error) {
	if chronicleID == "" || labelName == "" || newVersionID == "" {
		return nil, types.ErrInvalidID
	}

	unlock := s.labels.lock(labelKey(chronicleID, labelName))
	defer unlock()

	target, err := s.store.GetVersion(newVersionID)
	if err != nil {
		return nil, err
	}
	if target.ChronicleID != chronicleID {
		return nil, fmt.Errorf("repoint target %s: %w", newVersionID, types.ErrWrongChronicle)
	}

	override := map[string]string{labelKey(chronicleID, labelName): newVersionID}

	if err := s.checkCycle(target.VersionID, target.AST, override); err != nil {
		return nil, err
	}

	reports, err := s.impactReports(chronicleID, labelName, target, override)
	if err != nil {
		return nil, err
	}
	if len(reports) > 0 {
		return nil, &types.ImpactBlockedError{
			ChronicleID: chronicleID,
			LabelName:   labelName,
			Reports:     reports,
		}
	}

	return s.store.SetLabel(chronicleID, labelName, newVersionID)
}

// impactReports re-typechecks every by-label dependent of the label
// against the prospective target. Expression dependents are re-inferred
// in full, each under its own dictionary snapshot with the override in
// place. External dependents carry no AST the ledger can check, so they
// are reported whenever the target's result type changes.
func (s *Service) impactReports(chronicleID, labelName string, target *types.ExpressionVersion, override map[string]string) ([]types.ImpactReport, error) {
	usages, err := s.store.UsageByLabel(chronicleID, labelName)
	if err != nil {
		return nil, err
	}
	if len(usages) == 0 {
		return nil, nil
	}

	newType, err := s.inferType(target, override, 0)
	if err != nil {
		return nil, fmt.Errorf("typechecking repoint target: %w", err)
	}
	oldType, oldKnown := s.currentLabelType(chronicleID, labelName)

	var reports []types.ImpactReport
	for _, u := range usages {
		report := types.ImpactReport{
			ReferencerType:      u.ReferencerType,
			ReferencerID:        u.ReferencerID,
			ReferencerVersionID: u.ReferencerVersionID,
		}

		if u.ReferencerType != types.ReferencerExpression {
			if oldKnown && newType != oldType {
				report.Reason = fmt.Sprintf("result type changes from %s to %s", oldType, newType)
				reports = append(reports, report)
			}
			continue
		}

		referencer, err := s.store.GetVersion(u.ReferencerVersionID)
		if err != nil {
			report.Reason = fmt.Sprintf("referencer version unavailable: %v", err)
			reports = append(reports, report)
			continue
		}
		if _, err := s.inferType(referencer, override, 0); err != nil {
			report.Reason = err.Error()
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// currentLabelType returns the result type of the label's current target,
// when the label exists and its target still typechecks.
func (s *Service) currentLabelType(chronicleID, labelName string) (typecheck.Type, bool) {
	label, err := s.store.GetLabel(chronicleID, labelName)
	if err != nil {
		return typecheck.Type{}, false
	}
	current, err := s.store.GetVersion(label.VersionID)
	if err != nil {
		return typecheck.Type{}, false
	}
	t, err := s.inferType(current, nil, 0)
	if err != nil {
		return typecheck.Type{}, false
	}
	return t, true
}
