// This file implements the expression_labels directory: mutable
// (chronicle, label) -> version pointers with atomic upserts and
// snapshot-consistent reads.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// GetLabel returns the current label row. The whole row is read in one
// statement, so readers see either the old or the new target of a
// concurrent repoint, never a torn value.
func (b *Backend) GetLabel(chronicleID, labelName string) (*types.Label, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if chronicleID == "" || labelName == "" {
		return nil, types.ErrInvalidID
	}
	row := db.QueryRow(
		`SELECT chronicle_id, label_name, expression_version_id, updated_at
         FROM expression_labels WHERE chronicle_id = ? AND label_name = ?`,
		chronicleID, labelName,
	)
	label, err := hydrateLabel(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrLabelNotFound
		}
		return nil, fmt.Errorf("getting label %s/%s: %w", chronicleID, labelName, err)
	}
	return label, nil
}

// SetLabel atomically points a label at a version, creating the label on
// first assignment. The version must belong to the label's chronicle.
//
// SetLabel is the raw directory write; impact analysis and cycle checks
// happen in the ledger service before it is called.
func (b *Backend) SetLabel(chronicleID, labelName, versionID string) (*types.Label, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if chronicleID == "" || labelName == "" || versionID == "" {
		return nil, types.ErrInvalidID
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := getVersionTx(tx, versionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("label target %s: %w", versionID, types.ErrNotFound)
		}
		return nil, err
	}
	if target.ChronicleID != chronicleID {
		return nil, fmt.Errorf("label target %s: %w", versionID, types.ErrWrongChronicle)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO expression_labels (chronicle_id, label_name, expression_version_id, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(chronicle_id, label_name)
         DO UPDATE SET expression_version_id = excluded.expression_version_id,
                       updated_at = excluded.updated_at`,
		chronicleID, labelName, versionID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("setting label %s/%s: %w", chronicleID, labelName, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing label: %w", err)
	}
	return &types.Label{
		ChronicleID: chronicleID,
		LabelName:   labelName,
		VersionID:   versionID,
		UpdatedAt:   now,
	}, nil
}

// ListLabels returns all labels of a chronicle, ordered by name.
func (b *Backend) ListLabels(chronicleID string) ([]*types.Label, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		`SELECT chronicle_id, label_name, expression_version_id, updated_at
         FROM expression_labels WHERE chronicle_id = ? ORDER BY label_name ASC`,
		chronicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	defer rows.Close()

	labels := []*types.Label{}
	for rows.Next() {
		label, err := hydrateLabel(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("hydrating label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating labels: %w", err)
	}
	return labels, nil
}

func hydrateLabel(scan func(dest ...any) error) (*types.Label, error) {
	var (
		label     types.Label
		updatedAt string
	)
	if err := scan(&label.ChronicleID, &label.LabelName, &label.VersionID, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	label.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &label, nil
}
