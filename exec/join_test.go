package exec

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/guileen/memquery/algebra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBoth(t *testing.T, cat *MemoryCatalog, plan algebra.RelationalExpression, check func(t *testing.T, out *Relation)) {
	t.Helper()
	for _, hash := range []bool{true, false} {
		t.Run(fmt.Sprintf("hash=%v", hash), func(t *testing.T) {
			out, err := NewExecutor(cat, Options{HashJoin: hash}).Execute(context.Background(), plan)
			require.NoError(t, err)
			check(t, out)
		})
	}
}

func TestOuterJoins(t *testing.T) {
	r := mustRelation(t, "R", []string{"x", "y"}, []any{1, 2}, []any{3, 4})
	s := mustRelation(t, "S", []string{"y", "z"}, []any{2, 10}, []any{5, 20})
	cat := NewMemoryCatalog(r, s)

	tests := []struct {
		typ  algebra.JoinType
		want [][]any
	}{
		{algebra.JoinInner, [][]any{{1, 2, 10}}},
		{algebra.JoinLeftOuter, [][]any{{1, 2, 10}, {3, 4, nil}}},
		{algebra.JoinRightOuter, [][]any{{1, 2, 10}, {nil, 5, 20}}},
		{algebra.JoinFullOuter, [][]any{{1, 2, 10}, {3, 4, nil}, {nil, 5, 20}}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			j, err := algebra.NewNaturalJoin(r.Value(), s.Value(), tt.typ)
			require.NoError(t, err)
			runBoth(t, cat, j, func(t *testing.T, out *Relation) {
				assert.Equal(t, tt.want, out.Values())
			})
		})
	}
}

func TestOuterJoin_EmptyInputs(t *testing.T) {
	r := mustRelation(t, "R", []string{"x", "y"}, []any{1, 2})
	empty := mustRelation(t, "S", []string{"y", "z"})
	cat := NewMemoryCatalog(r, empty)

	left, err := algebra.NewNaturalJoin(r.Value(), empty.Value(), algebra.JoinLeftOuter)
	require.NoError(t, err)
	runBoth(t, cat, left, func(t *testing.T, out *Relation) {
		assert.Equal(t, [][]any{{1, 2, nil}}, out.Values())
	})

	right, err := algebra.NewNaturalJoin(empty.Value(), r.Value(), algebra.JoinRightOuter)
	require.NoError(t, err)
	runBoth(t, cat, right, func(t *testing.T, out *Relation) {
		assert.Equal(t, []string{"y", "z", "x"}, out.Schema().ColumnNames())
		assert.Equal(t, [][]any{{2, nil, 1}}, out.Values())
	})
}

func TestEquiJoin_MultipleMatchesAndNulls(t *testing.T) {
	l := mustRelation(t, "L", []string{"k", "a"}, []any{1, "a1"}, []any{nil, "a2"}, []any{2, "a3"})
	r := mustRelation(t, "R", []string{"k2", "b"}, []any{1, "b1"}, []any{1.0, "b2"}, []any{nil, "b3"})
	j, err := algebra.NewEquiJoin(l.Value(), r.Value(), algebra.JoinInner, algebra.JoinCondition{LeftColumn: "k", RightColumn: "k2"})
	require.NoError(t, err)

	runBoth(t, NewMemoryCatalog(l, r), j, func(t *testing.T, out *Relation) {
		assert.Equal(t, [][]any{
			{1, "a1", 1, "b1"},
			{1, "a1", 1.0, "b2"},
			{nil, "a2", nil, "b3"},
		}, out.Values())
	})
}

// pairs returns the (a, b) label columns of a join result.
func pairs(t *testing.T, out *Relation) [][]any {
	t.Helper()
	var got [][]any
	for _, row := range out.Rows() {
		a, err := row.Value("a")
		require.NoError(t, err)
		b, err := row.Value("b")
		require.NoError(t, err)
		got = append(got, []any{a, b})
	}
	return got
}

func TestEquiJoin_NaNMatchesOnlyNaN(t *testing.T) {
	otherNaN := math.Float64frombits(0x7FF8000000000001)
	l := mustRelation(t, "L", []string{"k", "a"}, []any{math.NaN(), "a1"}, []any{1.0, "a2"})
	r := mustRelation(t, "R", []string{"k2", "b"}, []any{1.0, "b1"}, []any{otherNaN, "b2"}, []any{7, "b3"})
	j, err := algebra.NewEquiJoin(l.Value(), r.Value(), algebra.JoinLeftOuter, algebra.JoinCondition{LeftColumn: "k", RightColumn: "k2"})
	require.NoError(t, err)

	runBoth(t, NewMemoryCatalog(l, r), j, func(t *testing.T, out *Relation) {
		assert.Equal(t, [][]any{{"a1", "b2"}, {"a2", "b1"}}, pairs(t, out))
	})
}

func TestEquiJoin_LargeIntegersCompareExactly(t *testing.T) {
	l := mustRelation(t, "L", []string{"k", "a"}, []any{int64(1<<53 + 1), "a1"}, []any{int64(1 << 53), "a2"})
	r := mustRelation(t, "R", []string{"k2", "b"}, []any{float64(1 << 53), "b1"})
	j, err := algebra.NewEquiJoin(l.Value(), r.Value(), algebra.JoinLeftOuter, algebra.JoinCondition{LeftColumn: "k", RightColumn: "k2"})
	require.NoError(t, err)

	runBoth(t, NewMemoryCatalog(l, r), j, func(t *testing.T, out *Relation) {
		assert.Equal(t, [][]any{{"a1", nil}, {"a2", "b1"}}, pairs(t, out))
	})
}

func TestHashJoin_UnhashableKeysFallBack(t *testing.T) {
	l := mustRelation(t, "L", []string{"k", "a"},
		[]any{&key{id: 1, tag: "l1"}, "x"}, []any{2, "y"})
	r := mustRelation(t, "R", []string{"k", "b"},
		[]any{&key{id: 1, tag: "r1"}, "p"}, []any{2, "q"}, []any{3, "z"})
	cat := NewMemoryCatalog(l, r)

	j, err := algebra.NewNaturalJoin(l.Value(), r.Value(), algebra.JoinFullOuter)
	require.NoError(t, err)
	runBoth(t, cat, j, func(t *testing.T, out *Relation) {
		require.Equal(t, 3, out.Len())
		first := out.Rows()[0]
		k, _ := first.Value("k")
		assert.Equal(t, "l1", k.(*key).tag, "shared column comes from the left input")
		assert.Equal(t, []any{2, "y", "q"}, out.Rows()[1].Values())
		assert.Equal(t, []any{3, nil, "z"}, out.Rows()[2].Values())
	})
}

func TestHashJoin_RightOuterReadsSharedColumnsFromRight(t *testing.T) {
	l := mustRelation(t, "L", []string{"k"}, []any{&key{id: 7, tag: "left"}})
	r := mustRelation(t, "R", []string{"k"}, []any{&key{id: 7, tag: "right"}})
	j, err := algebra.NewNaturalJoin(l.Value(), r.Value(), algebra.JoinRightOuter)
	require.NoError(t, err)

	runBoth(t, NewMemoryCatalog(l, r), j, func(t *testing.T, out *Relation) {
		require.Equal(t, 1, out.Len())
		k, _ := out.Rows()[0].Value("k")
		assert.Equal(t, "right", k.(*key).tag)
	})
}

func TestThetaJoin_LeftOuter(t *testing.T) {
	a := mustRelation(t, "A", []string{"lo"}, []any{1}, []any{9})
	b := mustRelation(t, "B", []string{"v"}, []any{3}, []any{5})
	j, err := algebra.NewThetaJoin(a.Value(), b.Value(), algebra.JoinLeftOuter, func(l, r algebra.Row) (bool, error) {
		lv, _ := l.Value("lo")
		rv, _ := r.Value("v")
		c, err := algebra.CompareValues(lv, rv)
		return c < 0, err
	})
	require.NoError(t, err)

	out, err := NewExecutor(NewMemoryCatalog(a, b), DefaultOptions()).Execute(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{1, 3}, {1, 5}, {9, nil}}, out.Values())
}
