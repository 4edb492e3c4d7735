package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{
			name: "bool literal",
			node: Bool(true),
		},
		{
			name: "number literal",
			node: Num(42.5),
		},
		{
			name: "null literal",
			node: Null(),
		},
		{
			name: "list literal with field",
			node: List(Str("a"), Num(1), FieldRef("customer.tier")),
		},
		{
			name: "compare field to literal",
			node: &Compare{Op: OpGe, LHS: FieldRef("signal.page_views_7d"), RHS: Num(10)},
		},
		{
			name: "logical with not",
			node: &Logical{
				Op:  OpAnd,
				LHS: &Not{Expr: FieldRef("customer.is_blocked")},
				RHS: &Compare{Op: OpEq, LHS: FieldRef("customer.country"), RHS: Str("DE")},
			},
		},
		{
			name: "membership in list",
			node: &Membership{
				Op:   OpIn,
				Item: FieldRef("customer.tier"),
				List: List(Str("gold"), Str("silver")),
			},
		},
		{
			name: "contains",
			node: &Contains{Container: FieldRef("customer.tags"), Value: Str("vip")},
		},
		{
			name: "regex match",
			node: &RegexMatch{Subject: FieldRef("customer.email"), Pattern: `@example\.com$`},
		},
		{
			name: "call with args",
			node: &Call{Name: "len", Args: []Node{FieldRef("customer.tags")}},
		},
		{
			name: "arithmetic",
			node: &Arith{Op: OpDiv, LHS: FieldRef("order.total"), RHS: Num(2)},
		},
		{
			name: "pinned expression ref",
			node: &ExprRef{VersionID: "0193e1d2-aaaa-7000-8000-000000000001"},
		},
		{
			name: "by-label expression ref",
			node: &ExprRef{ChronicleID: "chr-1", Label: "production"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.node)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.node, decoded)

			// Re-encoding the decoded node yields the same canonical bytes.
			again, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

func TestHashContentAddressing(t *testing.T) {
	a := &Compare{Op: OpGt, LHS: FieldRef("order.total"), RHS: Num(100)}
	b := &Compare{Op: OpGt, LHS: FieldRef("order.total"), RHS: Num(100)}
	c := &Compare{Op: OpGt, LHS: FieldRef("order.total"), RHS: Num(101)}

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)
	hashC, err := Hash(c)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "structurally equal ASTs must hash identically")
	assert.NotEqual(t, hashA, hashC)
	assert.Len(t, hashA, 64, "sha256 hex digest")
}

func TestHashStableAcrossEncodings(t *testing.T) {
	node := &Logical{
		Op:  OpOr,
		LHS: &Call{Name: "exists", Args: []Node{FieldRef("customer.email")}},
		RHS: &Compare{Op: OpNe, LHS: FieldRef("customer.id"), RHS: Null()},
	}
	first, err := Hash(node)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Hash(node)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want []Dep
	}{
		{
			name: "literal has no deps",
			node: Num(1),
			want: []Dep{},
		},
		{
			name: "single field",
			node: FieldRef("customer.age"),
			want: []Dep{{Type: DepField, Key: "customer.age"}},
		},
		{
			name: "duplicate fields collapse",
			node: &Logical{
				Op:  OpAnd,
				LHS: &Compare{Op: OpGt, LHS: FieldRef("customer.age"), RHS: Num(18)},
				RHS: &Compare{Op: OpLt, LHS: FieldRef("customer.age"), RHS: Num(65)},
			},
			want: []Dep{{Type: DepField, Key: "customer.age"}},
		},
		{
			name: "function and nested field args",
			node: &Call{Name: "len", Args: []Node{FieldRef("customer.tags")}},
			want: []Dep{
				{Type: DepField, Key: "customer.tags"},
				{Type: DepFunction, Key: "len"},
			},
		},
		{
			name: "fields inside list literal",
			node: &Membership{
				Op:   OpIn,
				Item: FieldRef("customer.tier"),
				List: List(Str("gold"), FieldRef("config.allowed_tier")),
			},
			want: []Dep{
				{Type: DepField, Key: "config.allowed_tier"},
				{Type: DepField, Key: "customer.tier"},
			},
		},
		{
			name: "pinned and by-label expression refs",
			node: &Logical{
				Op:  OpAnd,
				LHS: &ExprRef{VersionID: "ver-1"},
				RHS: &ExprRef{ChronicleID: "chr-2", Label: "latest"},
			},
			want: []Dep{
				{Type: DepExpression, Key: "label:chr-2/latest"},
				{Type: DepExpression, Key: "ver-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.node))
		})
	}
}

func TestParseExprKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    *ExprRef
		wantErr bool
	}{
		{name: "pinned", key: "ver-123", want: &ExprRef{VersionID: "ver-123"}},
		{name: "by label", key: "label:chr-1/production", want: &ExprRef{ChronicleID: "chr-1", Label: "production"}},
		{name: "label in name keeps first slash split", key: "label:chr-1/a/b", want: &ExprRef{ChronicleID: "chr-1", Label: "a/b"}},
		{name: "empty", key: "", wantErr: true},
		{name: "missing label", key: "label:chr-1", wantErr: true},
		{name: "missing chronicle", key: "label:/prod", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExprKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDepKeyRoundTrip(t *testing.T) {
	refs := []*ExprRef{
		{VersionID: "ver-9"},
		{ChronicleID: "chr-7", Label: "latest"},
	}
	for _, ref := range refs {
		parsed, err := ParseExprKey(ref.DepKey())
		require.NoError(t, err)
		assert.Equal(t, ref, parsed)
	}
}
