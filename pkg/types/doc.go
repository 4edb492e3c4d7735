// Package types defines the expression ledger's domain entities
// (ExpressionVersion, Label, Dependency, Usage), the Store interface
// implemented by storage backends, the backend Config, and the standard
// error values shared across the module.
package types
