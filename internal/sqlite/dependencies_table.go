// This file implements the dependency table accessor: the forward map
// from an expression version to the fields, functions, and expressions
// it references.
package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// ListDependencies returns the extracted dependencies of a version,
// ordered by (type, key). Dependency rows are written once at version
// creation and never change afterwards.
func (b *Backend) ListDependencies(versionID string) ([]types.Dependency, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	if versionID == "" {
		return nil, types.ErrInvalidID
	}

	var exists int
	err = db.QueryRow("SELECT COUNT(*) FROM expression_ledger WHERE expression_version_id = ?", versionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking version %s: %w", versionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("version %s: %w", versionID, types.ErrNotFound)
	}

	rows, err := db.Query(
		`SELECT expression_version_id, dep_type, dep_key
         FROM expression_dependencies
         WHERE expression_version_id = ?
         ORDER BY dep_type ASC, dep_key ASC`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	defer rows.Close()

	deps := []types.Dependency{}
	for rows.Next() {
		var dep types.Dependency
		if err := rows.Scan(&dep.VersionID, &dep.Type, &dep.Key); err != nil {
			return nil, fmt.Errorf("hydrating dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return deps, nil
}
