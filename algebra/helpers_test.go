package algebra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustValue(t *testing.T, name string, columns ...string) *RelationalValue {
	t.Helper()
	schema, err := NewBaseSchema(name, columns...)
	require.NoError(t, err)
	return NewRelationalValue(schema)
}

func mustRows(t *testing.T, schema *RelationSchema, rows ...[]any) []Row {
	t.Helper()
	out := make([]Row, len(rows))
	for i, values := range rows {
		row, err := NewRow(schema, values...)
		require.NoError(t, err)
		out[i] = row
	}
	return out
}

// joinAll is a minimal nested-loop driver over matched pairs.
func joinAll(t *testing.T, j Join, left, right []Row) []Row {
	t.Helper()
	var out []Row
	for _, l := range left {
		for _, r := range right {
			ok, err := j.Match(l, r)
			require.NoError(t, err)
			if !ok {
				continue
			}
			row, err := j.Call(l, r)
			require.NoError(t, err)
			out = append(out, row)
		}
	}
	return out
}

// aggregateAll is a minimal grouping driver; groups come out in first-seen
// order.
func aggregateAll(t *testing.T, op *AggregationOperation, rows []Row) []Row {
	t.Helper()
	type group struct {
		key  []any
		rep  Row
		aggs map[AggregationSpec]Aggregation
	}
	var groups []*group
	for _, row := range rows {
		key, err := op.GroupKey(row)
		require.NoError(t, err)

		var g *group
		for _, candidate := range groups {
			if keysEqual(candidate.key, key) {
				g = candidate
				break
			}
		}
		if g == nil {
			g = &group{key: key, rep: row, aggs: op.CreateAggregations()}
			groups = append(groups, g)
		}
		require.NoError(t, op.Update(g.aggs, row))
	}

	out := make([]Row, len(groups))
	for i, g := range groups {
		row, err := op.Emit(g.rep, g.aggs)
		require.NoError(t, err)
		out[i] = row
	}
	return out
}

func keysEqual(a, b []any) bool {
	for i := range a {
		if !ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func rowValues(rows []Row) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = row.Values()
	}
	return out
}
