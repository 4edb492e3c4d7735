// Package dictionary manages dictionary snapshots: immutable field-type
// catalogs that expression versions are checked against. Each version
// records the snapshot id it was authored under, so later re-checks use
// the same field universe the author saw.
package dictionary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
)

var (
	ErrSnapshotNotFound = errors.New("dictionary snapshot not found")
	ErrBadType          = errors.New("unparseable type name")
)

// Snapshot is one immutable field catalog. It implements the field half
// of typecheck.Dictionary; function signatures come from the evaluator's
// registry and are composed in by the ledger service.
type Snapshot struct {
	ID     string
	Fields map[string]typecheck.Type
}

// FieldType returns the type of a dotted field path.
func (s *Snapshot) FieldType(path string) (typecheck.Type, bool) {
	t, ok := s.Fields[path]
	return t, ok
}

// Provider resolves snapshot ids to snapshots. Snapshots are immutable:
// a provider must return the same content for the same id forever.
type Provider interface {
	Snapshot(id string) (*Snapshot, error)
}

// Static is an in-memory Provider, used in tests and for embedded
// deployments that ship their dictionaries in code.
type Static map[string]*Snapshot

func (s Static) Snapshot(id string) (*Snapshot, error) {
	snap, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	return snap, nil
}

// ParseType parses a type name as written in snapshot files: "bool",
// "number", "string", "null", "any", or "set<elem>".
func ParseType(name string) (typecheck.Type, error) {
	name = strings.TrimSpace(name)
	if elem, ok := strings.CutPrefix(name, "set<"); ok {
		elem, ok = strings.CutSuffix(elem, ">")
		if !ok {
			return typecheck.Type{}, fmt.Errorf("%q: %w", name, ErrBadType)
		}
		switch elem {
		case typecheck.KindBool, typecheck.KindNumber, typecheck.KindString, typecheck.KindAny:
			return typecheck.SetOf(elem), nil
		}
		return typecheck.Type{}, fmt.Errorf("%q: %w", name, ErrBadType)
	}
	switch name {
	case typecheck.KindBool:
		return typecheck.Bool, nil
	case typecheck.KindNumber:
		return typecheck.Number, nil
	case typecheck.KindString:
		return typecheck.String, nil
	case typecheck.KindNull:
		return typecheck.Null, nil
	case typecheck.KindAny:
		return typecheck.Any, nil
	}
	return typecheck.Type{}, fmt.Errorf("%q: %w", name, ErrBadType)
}
