package types

// Dependency types. These mirror the ast package's extraction output; the
// dep key is a dotted field path, a function name, or an expression
// reference key (version id or label:<chronicle>/<label>).
const (
	DepField      = "field"
	DepFunction   = "function"
	DepExpression = "expression"
)

// Dependency records that a version statically references a field,
// function, or nested expression. The set is derived from the version's
// AST at creation time and never mutated afterward; changing dependencies
// means writing a new version.
type Dependency struct {
	VersionID string
	Type      string
	Key       string
}
