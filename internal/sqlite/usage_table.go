// This file implements the usage index: the reverse map from
// expressions to the referencers that depend on them, keyed either by a
// pinned version or by a (chronicle, label) pointer.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

const usageColumns = `usage_id, expression_ref_kind, expression_version_id,
    expression_chronicle_id, expression_label_name,
    referencer_type, referencer_id, referencer_version_id, role, path, recorded_at`

// AddUsage records one usage entry. External consumers call this to
// register that one of their versions depends on an expression.
func (b *Backend) AddUsage(u types.Usage) error {
	db, err := b.ready()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUsageTx(tx, u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing usage: %w", err)
	}
	return nil
}

// ReplaceUsage swaps one referencer version's outgoing usage set in a
// single transaction. Readers never observe a partially replaced set.
func (b *Backend) ReplaceUsage(referencerType, referencerID, referencerVersionID string, usages []types.Usage) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if referencerType == "" || referencerID == "" || referencerVersionID == "" {
		return types.ErrInvalidID
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM expression_usage_index
         WHERE referencer_type = ? AND referencer_id = ? AND referencer_version_id = ?`,
		referencerType, referencerID, referencerVersionID,
	)
	if err != nil {
		return fmt.Errorf("clearing usage set: %w", err)
	}
	for _, u := range usages {
		u.ReferencerType = referencerType
		u.ReferencerID = referencerID
		u.ReferencerVersionID = referencerVersionID
		if err := insertUsageTx(tx, u); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing usage set: %w", err)
	}
	return nil
}

// RemoveUsage deletes every usage entry recorded by a referencer, across
// all of its versions. Called when a referencer is deleted outright.
func (b *Backend) RemoveUsage(referencerType, referencerID string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if referencerType == "" || referencerID == "" {
		return types.ErrInvalidID
	}
	_, err = db.Exec(
		"DELETE FROM expression_usage_index WHERE referencer_type = ? AND referencer_id = ?",
		referencerType, referencerID,
	)
	if err != nil {
		return fmt.Errorf("removing usage: %w", err)
	}
	return nil
}

// UsageByVersion returns all usage entries pinned to a version.
func (b *Backend) UsageByVersion(versionID string) ([]types.Usage, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if versionID == "" {
		return nil, types.ErrInvalidID
	}
	return queryUsage(db,
		`SELECT `+usageColumns+` FROM expression_usage_index
         WHERE expression_ref_kind = ? AND expression_version_id = ?
         ORDER BY referencer_type ASC, referencer_id ASC, referencer_version_id ASC`,
		string(types.RefPinned), versionID,
	)
}

// UsageByLabel returns all usage entries bound to a (chronicle, label)
// pointer.
func (b *Backend) UsageByLabel(chronicleID, labelName string) ([]types.Usage, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if chronicleID == "" || labelName == "" {
		return nil, types.ErrInvalidID
	}
	return queryUsage(db,
		`SELECT `+usageColumns+` FROM expression_usage_index
         WHERE expression_ref_kind = ? AND expression_chronicle_id = ? AND expression_label_name = ?
         ORDER BY referencer_type ASC, referencer_id ASC, referencer_version_id ASC`,
		string(types.RefByLabel), chronicleID, labelName,
	)
}

func queryUsage(db *sql.DB, query string, args ...any) ([]types.Usage, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	usages := []types.Usage{}
	for rows.Next() {
		u, err := hydrateUsage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("hydrating usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage: %w", err)
	}
	return usages, nil
}

func insertUsageTx(tx *sql.Tx, u types.Usage) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("usage entry: %w", err)
	}
	id := generateUUID()
	recordedAt := u.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := tx.Exec(
		`INSERT INTO expression_usage_index (`+usageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(u.RefKind), nullable(u.VersionID), nullable(u.ChronicleID), nullable(u.LabelName),
		u.ReferencerType, u.ReferencerID, u.ReferencerVersionID, u.Role, nullable(u.Path),
		recordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting usage entry: %w", err)
	}
	return nil
}

func hydrateUsage(scan func(dest ...any) error) (types.Usage, error) {
	var (
		u          types.Usage
		usageID    string
		refKind    string
		version    sql.NullString
		chronicle  sql.NullString
		labelName  sql.NullString
		path       sql.NullString
		recordedAt string
	)
	err := scan(&usageID, &refKind, &version, &chronicle, &labelName,
		&u.ReferencerType, &u.ReferencerID, &u.ReferencerVersionID, &u.Role, &path, &recordedAt)
	if err != nil {
		return types.Usage{}, err
	}
	u.RefKind = types.RefKind(refKind)
	u.VersionID = version.String
	u.ChronicleID = chronicle.String
	u.LabelName = labelName.String
	u.Path = path.String
	u.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return types.Usage{}, fmt.Errorf("parsing recorded_at: %w", err)
	}
	return u, nil
}
