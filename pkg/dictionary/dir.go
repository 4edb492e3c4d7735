package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
)

// snapshotFile is the on-disk shape of one snapshot: field paths mapped
// to type names in the set<elem> notation.
type snapshotFile struct {
	SnapshotID string            `json:"snapshot_id"`
	Fields     map[string]string `json:"fields"`
}

// Dir is a file-backed Provider reading <dir>/<id>.json. Parsed
// snapshots are cached forever, which is safe because snapshots are
// immutable.
type Dir struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Snapshot
}

// NewDir creates a Dir provider over a snapshot directory.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir, cache: map[string]*Snapshot{}}
}

// Snapshot loads a snapshot by id, from cache when possible.
func (d *Dir) Snapshot(id string) (*Snapshot, error) {
	d.mu.RLock()
	snap, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return snap, nil
	}

	data, err := os.ReadFile(filepath.Join(d.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", id, err)
	}

	fields := make(map[string]typecheck.Type, len(file.Fields))
	for path, name := range file.Fields {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s, field %s: %w", id, path, err)
		}
		fields[path] = t
	}
	snap = &Snapshot{ID: id, Fields: fields}

	d.mu.Lock()
	d.cache[id] = snap
	d.mu.Unlock()
	return snap, nil
}

// Write saves a snapshot to the directory as <id>.json. Writing an id
// that already exists is rejected, snapshots never change once published.
func (d *Dir) Write(snap *Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is empty")
	}
	path := filepath.Join(d.dir, snap.ID+".json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("snapshot %s already exists", snap.ID)
	}

	file := snapshotFile{SnapshotID: snap.ID, Fields: make(map[string]string, len(snap.Fields))}
	for fieldPath, t := range snap.Fields {
		file.Fields[fieldPath] = t.String()
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.ID, err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", snap.ID, err)
	}

	d.mu.Lock()
	d.cache[snap.ID] = snap
	d.mu.Unlock()
	return nil
}
