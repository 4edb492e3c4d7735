// Package sqlite implements the SQLite storage backend for the expression
// ledger: the append-only version table, the mutable label directory, the
// dependency table, and the usage index.
package sqlite

// Schema DDL. The ledger's version tree is an append-only table with
// explicit antecedent/branch keys; traversal is index-driven lookup.
const (
	createLedger = `CREATE TABLE IF NOT EXISTS expression_ledger (
    expression_version_id TEXT PRIMARY KEY,
    chronicle_id TEXT NOT NULL,
    antecedent_id TEXT REFERENCES expression_ledger(expression_version_id),
    branch_id TEXT REFERENCES expression_ledger(expression_version_id),
    dsl_text TEXT NOT NULL,
    ast_json TEXT NOT NULL,
    ast_hash TEXT NOT NULL,
    dictionary_snapshot_id TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createLabels = `CREATE TABLE IF NOT EXISTS expression_labels (
    chronicle_id TEXT NOT NULL,
    label_name TEXT NOT NULL,
    expression_version_id TEXT NOT NULL REFERENCES expression_ledger(expression_version_id),
    updated_at TEXT NOT NULL,
    PRIMARY KEY (chronicle_id, label_name)
);`

	createDependencies = `CREATE TABLE IF NOT EXISTS expression_dependencies (
    expression_version_id TEXT NOT NULL REFERENCES expression_ledger(expression_version_id),
    dep_type TEXT NOT NULL,
    dep_key TEXT NOT NULL,
    PRIMARY KEY (expression_version_id, dep_type, dep_key)
);`

	createUsageIndex = `CREATE TABLE IF NOT EXISTS expression_usage_index (
    usage_id TEXT PRIMARY KEY,
    expression_ref_kind TEXT NOT NULL,
    expression_version_id TEXT,
    expression_chronicle_id TEXT,
    expression_label_name TEXT,
    referencer_type TEXT NOT NULL,
    referencer_id TEXT NOT NULL,
    referencer_version_id TEXT NOT NULL,
    role TEXT NOT NULL,
    path TEXT,
    recorded_at TEXT NOT NULL
);`
)

// Index DDL. idx_ledger_tip is load-bearing: at most one version may
// extend a given antecedent, which is what turns concurrent tip races
// into constraint violations mapped to ErrConflict.
const (
	idxLedgerTip       = `CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_tip ON expression_ledger(chronicle_id, antecedent_id) WHERE antecedent_id IS NOT NULL;`
	idxLedgerChronicle = `CREATE INDEX IF NOT EXISTS idx_ledger_chronicle ON expression_ledger(chronicle_id);`
	idxLedgerHash      = `CREATE INDEX IF NOT EXISTS idx_ledger_hash ON expression_ledger(chronicle_id, ast_hash);`
	idxDependencyKey   = `CREATE INDEX IF NOT EXISTS idx_dependency_key ON expression_dependencies(dep_type, dep_key);`
	idxUsageVersion    = `CREATE INDEX IF NOT EXISTS idx_usage_version ON expression_usage_index(expression_version_id);`
	idxUsageLabel      = `CREATE INDEX IF NOT EXISTS idx_usage_label ON expression_usage_index(expression_chronicle_id, expression_label_name);`
	idxUsageReferencer = `CREATE INDEX IF NOT EXISTS idx_usage_referencer ON expression_usage_index(referencer_type, referencer_id, referencer_version_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createLedger,
	createLabels,
	createDependencies,
	createUsageIndex,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxLedgerTip,
	idxLedgerChronicle,
	idxLedgerHash,
	idxDependencyKey,
	idxUsageVersion,
	idxUsageLabel,
	idxUsageReferencer,
}
