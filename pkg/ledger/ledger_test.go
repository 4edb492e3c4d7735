// Tests for the ledger service: typecheck-gated creation, dependency
// mirroring, reference resolution, cycle rejection, impact-gated
// repoints, and evaluation through the label directory.
package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chronicle/internal/sqlite"
	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/dictionary"
	"github.com/mesh-intelligence/chronicle/pkg/eval"
	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	b := sqlite.NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })

	snapshots := dictionary.Static{
		"dict-v1": {
			ID: "dict-v1",
			Fields: map[string]typecheck.Type{
				"order.total":   typecheck.Number,
				"order.express": typecheck.Bool,
				"customer.name": typecheck.String,
				"customer.tags": typecheck.SetOf(typecheck.KindString),
			},
		},
	}
	return New(b, snapshots, nil)
}

func createReq(chronicleID string, node ast.Node) CreateRequest {
	return CreateRequest{
		ChronicleID:          chronicleID,
		DSLText:              "test expression",
		AST:                  node,
		DictionarySnapshotID: "dict-v1",
		CreatedBy:            "tester",
	}
}

func TestCreateVersion_TypecheckGate(t *testing.T) {
	s := setupService(t)

	// Well-typed expression passes.
	_, err := s.CreateVersion(createReq("chr-1",
		&ast.Compare{Op: ast.OpGt, LHS: ast.FieldRef("order.total"), RHS: ast.Num(100)}))
	require.NoError(t, err)

	// Unknown field is rejected before anything is written.
	_, err = s.CreateVersion(createReq("chr-2",
		&ast.Compare{Op: ast.OpGt, LHS: ast.FieldRef("order.missing"), RHS: ast.Num(1)}))
	assert.ErrorIs(t, err, typecheck.ErrUnknownField)

	// Ill-typed comparison is rejected.
	_, err = s.CreateVersion(createReq("chr-2",
		&ast.Compare{Op: ast.OpLt, LHS: ast.FieldRef("customer.name"), RHS: ast.Num(1)}))
	assert.ErrorIs(t, err, typecheck.ErrTypeMismatch)

	// Unknown function is rejected.
	_, err = s.CreateVersion(createReq("chr-2",
		&ast.Call{Name: "nonesuch", Args: []ast.Node{ast.Num(1)}}))
	assert.ErrorIs(t, err, typecheck.ErrUnknownFunction)

	versions, err := s.ListVersions("chr-2")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestCreateVersion_Idempotent(t *testing.T) {
	s := setupService(t)

	node := &ast.Compare{Op: ast.OpGe, LHS: ast.FieldRef("order.total"), RHS: ast.Num(50)}
	first, err := s.CreateVersion(createReq("chr-1", node))
	require.NoError(t, err)
	second, err := s.CreateVersion(createReq("chr-1", node))
	require.NoError(t, err)
	assert.Equal(t, first.VersionID, second.VersionID)

	versions, err := s.ListVersions("chr-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCreateVersion_DependencyUsageDuality(t *testing.T) {
	s := setupService(t)

	base, err := s.CreateVersion(createReq("chr-base", ast.Num(10)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-base", "current", base.VersionID)
	require.NoError(t, err)

	node := &ast.Logical{
		Op: ast.OpAnd,
		LHS: &ast.Compare{
			Op:  ast.OpGt,
			LHS: ast.FieldRef("order.total"),
			RHS: &ast.ExprRef{ChronicleID: "chr-base", Label: "current"},
		},
		RHS: &ast.Compare{
			Op:  ast.OpGt,
			LHS: &ast.Call{Name: "len", Args: []ast.Node{ast.FieldRef("customer.tags")}},
			RHS: ast.Num(0),
		},
	}
	v, err := s.CreateVersion(createReq("chr-dep", node))
	require.NoError(t, err)

	deps, err := s.Dependencies(v.VersionID)
	require.NoError(t, err)
	require.Len(t, deps, 4)
	assert.Equal(t, types.Dependency{VersionID: v.VersionID, Type: types.DepExpression, Key: "label:chr-base/current"}, deps[0])
	assert.Equal(t, types.Dependency{VersionID: v.VersionID, Type: types.DepField, Key: "customer.tags"}, deps[1])
	assert.Equal(t, types.Dependency{VersionID: v.VersionID, Type: types.DepField, Key: "order.total"}, deps[2])
	assert.Equal(t, types.Dependency{VersionID: v.VersionID, Type: types.DepFunction, Key: "len"}, deps[3])

	// Every expression dependency has a mirrored usage entry naming the
	// version as referencer.
	usages, err := s.QueryUsage(types.LabelRef("chr-base", "current"))
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, types.ReferencerExpression, usages[0].ReferencerType)
	assert.Equal(t, "chr-dep", usages[0].ReferencerID)
	assert.Equal(t, v.VersionID, usages[0].ReferencerVersionID)
}

func TestResolve(t *testing.T) {
	s := setupService(t)

	v1, err := s.CreateVersion(createReq("chr-1", ast.Num(1)))
	require.NoError(t, err)
	req2 := createReq("chr-1", ast.Num(2))
	req2.AntecedentID = v1.VersionID
	v2, err := s.CreateVersion(req2)
	require.NoError(t, err)

	_, err = s.RepointLabel("chr-1", "current", v1.VersionID)
	require.NoError(t, err)

	// Pinned resolution is stable.
	got, err := s.Resolve(types.PinnedRef(v1.VersionID))
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, got.VersionID)

	// By-label resolution tracks the directory.
	got, err = s.Resolve(types.LabelRef("chr-1", "current"))
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, got.VersionID)

	_, err = s.RepointLabel("chr-1", "current", v2.VersionID)
	require.NoError(t, err)
	got, err = s.Resolve(types.LabelRef("chr-1", "current"))
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, got.VersionID)

	_, err = s.Resolve(types.LabelRef("chr-1", "never"))
	assert.ErrorIs(t, err, types.ErrLabelNotFound)
}

func TestRepointLabel_BlocksBreakingChange(t *testing.T) {
	s := setupService(t)

	// Chronicle chr-c, label "prod" at a number-typed version.
	v1, err := s.CreateVersion(createReq("chr-c", ast.Num(100)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-c", "prod", v1.VersionID)
	require.NoError(t, err)

	// A string-typed successor in the same chronicle.
	req2 := createReq("chr-c", ast.Str("century"))
	req2.AntecedentID = v1.VersionID
	v2, err := s.CreateVersion(req2)
	require.NoError(t, err)

	// Dependent expression expecting a number from chr-c/prod.
	dep, err := s.CreateVersion(createReq("chr-d", &ast.Compare{
		Op:  ast.OpGt,
		LHS: ast.FieldRef("order.total"),
		RHS: &ast.ExprRef{ChronicleID: "chr-c", Label: "prod"},
	}))
	require.NoError(t, err)

	_, err = s.RepointLabel("chr-c", "prod", v2.VersionID)
	var blocked *types.ImpactBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "chr-c", blocked.ChronicleID)
	assert.Equal(t, "prod", blocked.LabelName)
	require.Len(t, blocked.Reports, 1)
	assert.Equal(t, "chr-d", blocked.Reports[0].ReferencerID)
	assert.Equal(t, dep.VersionID, blocked.Reports[0].ReferencerVersionID)
	assert.NotEmpty(t, blocked.Reports[0].Reason)

	// The directory still shows the old target.
	label, err := s.GetLabel("chr-c", "prod")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, label.VersionID)
}

func TestRepointLabel_AllowsCompatibleChange(t *testing.T) {
	s := setupService(t)

	v1, err := s.CreateVersion(createReq("chr-c", ast.Num(100)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-c", "prod", v1.VersionID)
	require.NoError(t, err)

	_, err = s.CreateVersion(createReq("chr-d", &ast.Compare{
		Op:  ast.OpGt,
		LHS: ast.FieldRef("order.total"),
		RHS: &ast.ExprRef{ChronicleID: "chr-c", Label: "prod"},
	}))
	require.NoError(t, err)

	// Another number-typed version keeps every dependent well-typed.
	req2 := createReq("chr-c", &ast.Arith{Op: ast.OpMul, LHS: ast.Num(2), RHS: ast.Num(75)})
	req2.AntecedentID = v1.VersionID
	v2, err := s.CreateVersion(req2)
	require.NoError(t, err)

	label, err := s.RepointLabel("chr-c", "prod", v2.VersionID)
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, label.VersionID)
}

func TestRepointLabel_CycleRejection(t *testing.T) {
	s := setupService(t)

	// Chronicle A starts with a plain version, labeled.
	a0, err := s.CreateVersion(createReq("chr-a", ast.Bool(true)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-a", "latest", a0.VersionID)
	require.NoError(t, err)

	// Chronicle B references A's label; B gets labeled.
	b1, err := s.CreateVersion(createReq("chr-b",
		&ast.Not{Expr: &ast.ExprRef{ChronicleID: "chr-a", Label: "latest"}}))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-b", "latest", b1.VersionID)
	require.NoError(t, err)

	// A new version of A references B's label. Creating it is legal:
	// the walk ends at a0.
	reqA1 := createReq("chr-a", &ast.Not{Expr: &ast.ExprRef{ChronicleID: "chr-b", Label: "latest"}})
	reqA1.AntecedentID = a0.VersionID
	a1, err := s.CreateVersion(reqA1)
	require.NoError(t, err)

	// With A's label still at a0, everything reachable from a1 is acyclic.
	require.NoError(t, s.DetectCycle(a1.VersionID))

	// Repointing A's label at it would close the loop a1 -> b1 -> a1.
	_, err = s.RepointLabel("chr-a", "latest", a1.VersionID)
	var cycle *types.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Path, a1.VersionID)
	assert.Contains(t, cycle.Path, b1.VersionID)

	// Neither directory entry moved.
	labelA, err := s.GetLabel("chr-a", "latest")
	require.NoError(t, err)
	assert.Equal(t, a0.VersionID, labelA.VersionID)
	labelB, err := s.GetLabel("chr-b", "latest")
	require.NoError(t, err)
	assert.Equal(t, b1.VersionID, labelB.VersionID)
}

func TestRepointLabel_ExternalReferencerPolicy(t *testing.T) {
	s := setupService(t)

	v1, err := s.CreateVersion(createReq("chr-c", ast.Num(1)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-c", "prod", v1.VersionID)
	require.NoError(t, err)

	// An external rule binds to the label. The ledger cannot re-check
	// its body, so a result type change blocks the repoint.
	err = s.RecordUsage(types.Usage{
		RefKind:             types.RefByLabel,
		ChronicleID:         "chr-c",
		LabelName:           "prod",
		ReferencerType:      "rule",
		ReferencerID:        "rule-7",
		ReferencerVersionID: "rule-7-v1",
		Role:                "condition",
	})
	require.NoError(t, err)

	reqStr := createReq("chr-c", ast.Str("x"))
	reqStr.AntecedentID = v1.VersionID
	vStr, err := s.CreateVersion(reqStr)
	require.NoError(t, err)

	_, err = s.RepointLabel("chr-c", "prod", vStr.VersionID)
	var blocked *types.ImpactBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Reports, 1)
	assert.Equal(t, "rule", blocked.Reports[0].ReferencerType)

	// A same-type target passes: the external contract is preserved.
	reqNum := createReq("chr-c", ast.Num(2))
	reqNum.AntecedentID = vStr.VersionID
	vNum, err := s.CreateVersion(reqNum)
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-c", "prod", vNum.VersionID)
	assert.NoError(t, err)
}

func TestRepointLabel_WrongChronicle(t *testing.T) {
	s := setupService(t)

	other, err := s.CreateVersion(createReq("chr-2", ast.Num(2)))
	require.NoError(t, err)

	_, err = s.RepointLabel("chr-1", "current", other.VersionID)
	assert.ErrorIs(t, err, types.ErrWrongChronicle)

	_, err = s.RepointLabel("chr-2", "current", "no-such-version")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestEvaluate_ThroughLabels(t *testing.T) {
	s := setupService(t)

	threshold, err := s.CreateVersion(createReq("chr-threshold", ast.Num(100)))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-threshold", "current", threshold.VersionID)
	require.NoError(t, err)

	check, err := s.CreateVersion(createReq("chr-check", &ast.Compare{
		Op:  ast.OpGt,
		LHS: ast.FieldRef("order.total"),
		RHS: &ast.ExprRef{ChronicleID: "chr-threshold", Label: "current"},
	}))
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-check", "current", check.VersionID)
	require.NoError(t, err)

	ctx := eval.Context{"order.total": eval.NumVal(150)}
	got, err := s.Evaluate(types.LabelRef("chr-check", "current"), ctx)
	require.NoError(t, err)
	assert.Equal(t, eval.BoolVal(true), got)

	// Raising the threshold flips the outcome without touching chr-check.
	req2 := createReq("chr-threshold", ast.Num(200))
	req2.AntecedentID = threshold.VersionID
	raised, err := s.CreateVersion(req2)
	require.NoError(t, err)
	_, err = s.RepointLabel("chr-threshold", "current", raised.VersionID)
	require.NoError(t, err)

	got, err = s.Evaluate(types.LabelRef("chr-check", "current"), ctx)
	require.NoError(t, err)
	assert.Equal(t, eval.BoolVal(false), got)
}

func TestEvaluate_ExistsForm(t *testing.T) {
	s := setupService(t)

	// exists() never resolves through the registry, so saving it must
	// pass the typecheck gate on its own.
	v, err := s.CreateVersion(createReq("chr-1",
		&ast.Call{Name: "exists", Args: []ast.Node{ast.FieldRef("order.total")}}))
	require.NoError(t, err)

	got, err := s.Evaluate(types.PinnedRef(v.VersionID),
		eval.Context{"order.total": eval.NumVal(99)})
	require.NoError(t, err)
	assert.Equal(t, eval.BoolVal(true), got)

	// An unbound field is not an error; exists reports its absence.
	got, err = s.Evaluate(types.PinnedRef(v.VersionID), eval.Context{})
	require.NoError(t, err)
	assert.Equal(t, eval.BoolVal(false), got)

	// Fields outside the dictionary snapshot are still rejected at save.
	_, err = s.CreateVersion(createReq("chr-1",
		&ast.Call{Name: "exists", Args: []ast.Node{ast.FieldRef("order.missing")}}))
	assert.ErrorIs(t, err, typecheck.ErrUnknownField)
}

func TestEvaluate_RegistryExtension(t *testing.T) {
	s := setupService(t)

	call := &ast.Call{Name: "double", Args: []ast.Node{ast.Num(21)}}

	// Unregistered name fails both checking and raw evaluation, without
	// crashing.
	_, err := s.CreateVersion(createReq("chr-1", call))
	assert.ErrorIs(t, err, typecheck.ErrUnknownFunction)
	_, err = s.EvaluateVersion(&types.ExpressionVersion{AST: call}, eval.Context{})
	assert.ErrorIs(t, err, eval.ErrUnknownFunction)

	s.RegisterFunction("double",
		typecheck.Signature{Params: []typecheck.Type{typecheck.Number}, Result: typecheck.Number},
		func(args []eval.Value) (eval.Value, error) {
			return eval.NumVal(args[0].Num * 2), nil
		})

	v, err := s.CreateVersion(createReq("chr-1", call))
	require.NoError(t, err)
	got, err := s.Evaluate(types.PinnedRef(v.VersionID), eval.Context{})
	require.NoError(t, err)
	assert.Equal(t, eval.NumVal(42), got)
}

func TestFork(t *testing.T) {
	s := setupService(t)

	source, err := s.CreateVersion(createReq("chr-src",
		&ast.Compare{Op: ast.OpEq, LHS: ast.FieldRef("customer.name"), RHS: ast.Str("smith")}))
	require.NoError(t, err)

	fork, err := s.Fork(source.VersionID, "chr-copy", "tester")
	require.NoError(t, err)
	assert.Equal(t, "chr-copy", fork.ChronicleID)
	assert.Equal(t, source.VersionID, fork.BranchID)
	assert.Equal(t, source.ASTHash, fork.ASTHash)
	assert.True(t, fork.Root())

	// The fork carries fresh dependency rows of its own.
	deps, err := s.Dependencies(fork.VersionID)
	require.NoError(t, err)
	assert.Len(t, deps, 1)

	_, err = s.Fork(source.VersionID, "chr-src", "tester")
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestConcurrentTipExtension(t *testing.T) {
	s := setupService(t)

	root, err := s.CreateVersion(createReq("chr-1", ast.Num(0)))
	require.NoError(t, err)

	reqA := createReq("chr-1", ast.Num(1))
	reqA.AntecedentID = root.VersionID
	reqB := createReq("chr-1", ast.Num(2))
	reqB.AntecedentID = root.VersionID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, req := range []CreateRequest{reqA, reqB} {
		i, req := i, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.CreateVersion(req)
		}()
	}
	wg.Wait()

	// Exactly one extension wins; the other observes the conflict.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], types.ErrConflict)
	} else {
		assert.ErrorIs(t, errs[0], types.ErrConflict)
		assert.NoError(t, errs[1])
	}
}

func TestKeyLocker(t *testing.T) {
	var l keyLocker

	unlock := l.lock("a/current")
	done := make(chan struct{})
	go func() {
		u := l.lock("a/current")
		u()
		close(done)
	}()

	// A different key does not queue behind the held one.
	u2 := l.lock("b/current")
	u2()

	unlock()
	<-done

	// Entries are reclaimed once released.
	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}
