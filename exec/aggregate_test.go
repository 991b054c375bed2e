package exec

import (
	"context"
	"math"
	"testing"

	"github.com/guileen/memquery/algebra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cat *MemoryCatalog, plan algebra.RelationalExpression) *Relation {
	t.Helper()
	out, err := NewExecutor(cat, DefaultOptions()).Execute(context.Background(), plan)
	require.NoError(t, err)
	return out
}

func TestAggregate_GroupsMatchValuesEqual(t *testing.T) {
	r := mustRelation(t, "R", []string{"k", "v"},
		[]any{math.NaN(), 1},
		[]any{int64(1<<53 + 1), 2},
		[]any{math.Float64frombits(0x7FF8000000000001), 4},
		[]any{float64(1 << 53), 8},
		[]any{int64(1 << 53), 16},
	)
	op, err := algebra.NewAggregationOperation(r.Value(), []string{"k"}, []algebra.AggregationSpec{
		algebra.NewAggregationSpec(algebra.AggSum, "v", "total"),
	})
	require.NoError(t, err)

	out := execute(t, NewMemoryCatalog(r), op)
	var totals []any
	for _, row := range out.Rows() {
		v, err := row.Value("total")
		require.NoError(t, err)
		totals = append(totals, v)
	}
	// NaN group, 2^53+1 group, then 2^53 (float and int together)
	assert.Equal(t, []any{int64(5), int64(2), int64(24)}, totals)
}

func TestAggregate_EmptyInput(t *testing.T) {
	r := mustRelation(t, "R", []string{"k", "v"})
	cat := NewMemoryCatalog(r)
	specs := []algebra.AggregationSpec{
		algebra.NewAggregationSpec(algebra.AggCount, "", "n"),
		algebra.NewAggregationSpec(algebra.AggSum, "v", "total"),
	}

	whole, err := algebra.NewAggregationOperation(r.Value(), nil, specs)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0), nil}}, execute(t, cat, whole).Values())

	grouped, err := algebra.NewAggregationOperation(r.Value(), []string{"k"}, specs)
	require.NoError(t, err)
	assert.Equal(t, 0, execute(t, cat, grouped).Len())
}

func TestAggregate_NumericKeysGroupTogether(t *testing.T) {
	r := mustRelation(t, "R", []string{"k", "v"},
		[]any{1, 10}, []any{int64(1), 5}, []any{1.0, 1}, []any{nil, 2}, []any{nil, 3})
	op, err := algebra.NewAggregationOperation(r.Value(), []string{"k"},
		[]algebra.AggregationSpec{algebra.NewAggregationSpec(algebra.AggSum, "v", "total")})
	require.NoError(t, err)

	assert.Equal(t, [][]any{{1, int64(16)}, {nil, int64(5)}}, execute(t, NewMemoryCatalog(r), op).Values())
}

func TestAggregate_UnhashableKeys(t *testing.T) {
	r := mustRelation(t, "R", []string{"k"},
		[]any{&key{id: 1, tag: "first"}}, []any{&key{id: 2}}, []any{&key{id: 1, tag: "second"}})
	op, err := algebra.NewAggregationOperation(r.Value(), []string{"k"},
		[]algebra.AggregationSpec{algebra.NewAggregationSpec(algebra.AggCount, "", "n")})
	require.NoError(t, err)

	out := execute(t, NewMemoryCatalog(r), op)
	require.Equal(t, 2, out.Len())
	k, _ := out.Rows()[0].Value("k")
	assert.Equal(t, "first", k.(*key).tag, "a group keeps its first row's values")
	n, _ := out.Rows()[0].Value("n")
	assert.Equal(t, int64(2), n)
}

func TestAggregate_OverJoin(t *testing.T) {
	customers := mustRelation(t, "customers", []string{"cid", "name"}, []any{1, "ann"}, []any{2, "bob"})
	orders := mustRelation(t, "orders", []string{"cid", "amount"}, []any{1, 10}, []any{1, 5}, []any{2, 7})
	j, err := algebra.NewNaturalJoin(customers.Value(), orders.Value(), algebra.JoinInner)
	require.NoError(t, err)
	op, err := algebra.NewAggregationOperation(j, []string{"name"}, []algebra.AggregationSpec{
		algebra.NewAggregationSpec(algebra.AggSum, "amount", "total"),
		algebra.NewAggregationSpec(algebra.AggMax, "amount", "largest"),
	})
	require.NoError(t, err)

	out := execute(t, NewMemoryCatalog(customers, orders), op)
	assert.Equal(t, [][]any{{"ann", int64(15), 10}, {"bob", int64(7), 7}}, out.Values())
}
