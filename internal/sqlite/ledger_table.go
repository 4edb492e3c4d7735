// This file implements the expression_ledger table: append-only version
// rows, content-addressed dedup, optimistic tip extension, and chronicle
// retirement.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

const versionColumns = `expression_version_id, chronicle_id, antecedent_id, branch_id,
    dsl_text, ast_json, ast_hash, dictionary_snapshot_id, created_by, created_at`

// CreateVersion appends an immutable version with its dependency rows and
// outgoing usage entries in one transaction. Identical content under the
// same antecedent is idempotent: the existing version is returned
// unchanged.
func (b *Backend) CreateVersion(v *types.ExpressionVersion, deps []types.Dependency, usages []types.Usage) (*types.ExpressionVersion, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if v == nil || v.ChronicleID == "" || v.AST == nil || v.ASTHash == "" {
		return nil, types.ErrInvalidData
	}

	astJSON, err := ast.Encode(v.AST)
	if err != nil {
		return nil, fmt.Errorf("encoding ast: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Idempotent content addressing: same hash, same antecedent, same
	// chronicle collapses to the existing version.
	existing, err := findByContent(tx, v.ChronicleID, v.ASTHash, v.AntecedentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// The antecedent must exist, belong to the same chronicle, and still
	// be a tip.
	if v.AntecedentID != "" {
		antecedent, err := getVersionTx(tx, v.AntecedentID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("antecedent %s: %w", v.AntecedentID, types.ErrNotFound)
			}
			return nil, err
		}
		if antecedent.ChronicleID != v.ChronicleID {
			return nil, fmt.Errorf("antecedent %s: %w", v.AntecedentID, types.ErrWrongChronicle)
		}
		var claimed int
		err = tx.QueryRow(
			"SELECT COUNT(*) FROM expression_ledger WHERE chronicle_id = ? AND antecedent_id = ?",
			v.ChronicleID, v.AntecedentID,
		).Scan(&claimed)
		if err != nil {
			return nil, fmt.Errorf("checking tip: %w", err)
		}
		if claimed > 0 {
			return nil, fmt.Errorf("antecedent %s already extended: %w", v.AntecedentID, types.ErrConflict)
		}
	}

	// A branch source may live in any chronicle, but must exist.
	if v.BranchID != "" {
		if _, err := getVersionTx(tx, v.BranchID); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("branch source %s: %w", v.BranchID, types.ErrNotFound)
			}
			return nil, err
		}
	}

	stored := *v
	if stored.VersionID == "" {
		stored.VersionID = generateUUID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(
		`INSERT INTO expression_ledger (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.VersionID, stored.ChronicleID, nullable(stored.AntecedentID), nullable(stored.BranchID),
		stored.DSLText, string(astJSON), stored.ASTHash, stored.DictionarySnapshotID,
		stored.CreatedBy, stored.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		// The unique tip index backstops the COUNT check above against
		// writers racing outside this connection.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("antecedent %s already extended: %w", v.AntecedentID, types.ErrConflict)
		}
		return nil, fmt.Errorf("inserting version: %w", err)
	}

	for _, d := range deps {
		if _, err := tx.Exec(
			"INSERT INTO expression_dependencies (expression_version_id, dep_type, dep_key) VALUES (?, ?, ?)",
			stored.VersionID, d.Type, d.Key,
		); err != nil {
			return nil, fmt.Errorf("inserting dependency %s/%s: %w", d.Type, d.Key, err)
		}
	}

	for _, u := range usages {
		u.ReferencerVersionID = stored.VersionID
		if err := insertUsageTx(tx, u); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing version: %w", err)
	}
	return &stored, nil
}

// GetVersion retrieves a version by id.
func (b *Backend) GetVersion(versionID string) (*types.ExpressionVersion, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if versionID == "" {
		return nil, types.ErrInvalidID
	}
	row := db.QueryRow(
		`SELECT `+versionColumns+` FROM expression_ledger WHERE expression_version_id = ?`,
		versionID,
	)
	v, err := hydrateVersion(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting version %s: %w", versionID, err)
	}
	return v, nil
}

// ListVersions returns all versions of a chronicle, oldest first.
func (b *Backend) ListVersions(chronicleID string) ([]*types.ExpressionVersion, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		`SELECT `+versionColumns+` FROM expression_ledger
         WHERE chronicle_id = ? ORDER BY created_at ASC, expression_version_id ASC`,
		chronicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	versions := []*types.ExpressionVersion{}
	for rows.Next() {
		v, err := hydrateVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("hydrating version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}

// RetireChronicle bulk-deletes a chronicle's versions, labels,
// dependencies, and outgoing usage entries, refusing while any referencer
// outside the chronicle still depends on it.
func (b *Backend) RetireChronicle(chronicleID string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if chronicleID == "" {
		return types.ErrInvalidID
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM expression_ledger WHERE chronicle_id = ?", chronicleID,
	).Scan(&count); err != nil {
		return fmt.Errorf("counting versions: %w", err)
	}
	if count == 0 {
		return types.ErrNotFound
	}

	// External referencers: any usage row targeting one of this
	// chronicle's versions or labels, recorded by someone other than
	// this chronicle's own versions.
	var referencers int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM expression_usage_index
         WHERE (expression_chronicle_id = ?
                OR expression_version_id IN
                   (SELECT expression_version_id FROM expression_ledger WHERE chronicle_id = ?))
           AND NOT (referencer_type = ? AND referencer_id = ?)`,
		chronicleID, chronicleID, types.ReferencerExpression, chronicleID,
	).Scan(&referencers)
	if err != nil {
		return fmt.Errorf("counting referencers: %w", err)
	}
	if referencers > 0 {
		return fmt.Errorf("%d referencer(s) remain: %w", referencers, types.ErrChronicleInUse)
	}

	steps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"outgoing usage", "DELETE FROM expression_usage_index WHERE referencer_type = ? AND referencer_id = ?",
			[]any{types.ReferencerExpression, chronicleID}},
		{"dependencies", `DELETE FROM expression_dependencies WHERE expression_version_id IN
            (SELECT expression_version_id FROM expression_ledger WHERE chronicle_id = ?)`,
			[]any{chronicleID}},
		{"labels", "DELETE FROM expression_labels WHERE chronicle_id = ?", []any{chronicleID}},
		{"versions", "DELETE FROM expression_ledger WHERE chronicle_id = ?", []any{chronicleID}},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, step.args...); err != nil {
			return fmt.Errorf("deleting %s: %w", step.desc, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing retirement: %w", err)
	}
	return nil
}

// findByContent looks up an existing version with the same content hash
// and antecedent within a chronicle.
func findByContent(tx *sql.Tx, chronicleID, astHash, antecedentID string) (*types.ExpressionVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM expression_ledger
        WHERE chronicle_id = ? AND ast_hash = ? AND `
	args := []any{chronicleID, astHash}
	if antecedentID == "" {
		query += "antecedent_id IS NULL"
	} else {
		query += "antecedent_id = ?"
		args = append(args, antecedentID)
	}
	row := tx.QueryRow(query, args...)
	v, err := hydrateVersion(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking content hash: %w", err)
	}
	return v, nil
}

// getVersionTx retrieves a version inside a transaction.
func getVersionTx(tx *sql.Tx, versionID string) (*types.ExpressionVersion, error) {
	row := tx.QueryRow(
		`SELECT `+versionColumns+` FROM expression_ledger WHERE expression_version_id = ?`,
		versionID,
	)
	v, err := hydrateVersion(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// hydrateVersion converts one ledger row into an ExpressionVersion,
// decoding the stored canonical AST.
func hydrateVersion(scan func(dest ...any) error) (*types.ExpressionVersion, error) {
	var (
		v                      types.ExpressionVersion
		antecedent, branch     sql.NullString
		astJSON, createdAt     string
	)
	if err := scan(
		&v.VersionID, &v.ChronicleID, &antecedent, &branch,
		&v.DSLText, &astJSON, &v.ASTHash, &v.DictionarySnapshotID,
		&v.CreatedBy, &createdAt,
	); err != nil {
		return nil, err
	}
	v.AntecedentID = antecedent.String
	v.BranchID = branch.String

	node, err := ast.Decode([]byte(astJSON))
	if err != nil {
		return nil, fmt.Errorf("decoding stored ast: %w", err)
	}
	v.AST = node

	v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &v, nil
}
