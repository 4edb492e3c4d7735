// Tests for SQLite backend lifecycle.
package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// setupBackend creates an attached Backend over a throwaway data
// directory, detached on test cleanup.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

// newVersion builds a valid unsaved version over the given AST.
func newVersion(t *testing.T, chronicleID string, node ast.Node) *types.ExpressionVersion {
	t.Helper()
	hash, err := ast.Hash(node)
	require.NoError(t, err)
	return &types.ExpressionVersion{
		ChronicleID:          chronicleID,
		DSLText:              "test expression",
		AST:                  node,
		ASTHash:              hash,
		DictionarySnapshotID: "dict-v1",
		CreatedBy:            "tester",
	}
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	require.NoError(t, b.Attach(config))
	defer b.Detach()

	dbPath := filepath.Join(tmpDir, "chronicle.db")
	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "chronicle.db should be created")

	err = b.Attach(config)
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()

	err := b.Attach(types.Config{Backend: "", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	err = b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackend_DetachIdempotent(t *testing.T) {
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())
}

func TestBackend_OperationsAfterDetach(t *testing.T) {
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	require.NoError(t, b.Detach())

	_, err := b.GetVersion("any")
	assert.ErrorIs(t, err, types.ErrDetached)

	_, err = b.CreateVersion(newVersion(t, "chr-1", ast.Bool(true)), nil, nil)
	assert.ErrorIs(t, err, types.ErrDetached)

	_, err = b.GetLabel("chr-1", "current")
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackend_Reattach(t *testing.T) {
	tmpDir := t.TempDir()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	v, err := b.CreateVersion(newVersion(t, "chr-persist", ast.Num(42)), nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	// Data survives a detach/attach cycle over the same directory.
	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	got, err := b2.GetVersion(v.VersionID)
	require.NoError(t, err)
	assert.Equal(t, v.ASTHash, got.ASTHash)
	assert.Equal(t, "chr-persist", got.ChronicleID)
}
