package exec

import (
	"context"
	"errors"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/codec"
)

type group struct {
	key  []any
	rep  algebra.Row
	aggs map[algebra.AggregationSpec]algebra.Aggregation
}

// AggregateOperator groups its input by hashing the grouping values and emits
// one row per group in first-seen order. Groups whose key cannot be hashed
// are found by comparing keys with algebra.ValuesEqual.
type AggregateOperator struct {
	opStats
	input Operator
	node  *algebra.AggregationOperation

	out []algebra.Row
	pos int
}

func NewAggregate(input Operator, node *algebra.AggregationOperation) *AggregateOperator {
	return &AggregateOperator{opStats: opStats{name: "aggregate"}, input: input, node: node}
}

func (op *AggregateOperator) Open(ctx context.Context) error {
	op.open(ctx)
	op.out, op.pos = nil, 0
	if err := op.input.Open(ctx); err != nil {
		return err
	}

	var (
		groups []*group
		byKey  = make(map[string]*group)
		loose  []*group
		cc     cancelCheck
	)
	for {
		if err := cc.check(ctx); err != nil {
			return err
		}
		row, err := op.input.Next()
		if err == EOF {
			break
		}
		if err != nil {
			return err
		}
		key, err := op.node.GroupKey(row)
		if err != nil {
			return err
		}

		var g *group
		encoded, err := codec.EncodeKey(key...)
		switch {
		case err == nil:
			g = byKey[string(encoded)]
			if g == nil {
				g = &group{key: key, rep: row, aggs: op.node.CreateAggregations()}
				byKey[string(encoded)] = g
				groups = append(groups, g)
			}
		case errors.Is(err, codec.ErrUnhashable):
			for _, candidate := range loose {
				if keysEqual(candidate.key, key) {
					g = candidate
					break
				}
			}
			if g == nil {
				g = &group{key: key, rep: row, aggs: op.node.CreateAggregations()}
				loose = append(loose, g)
				groups = append(groups, g)
			}
		default:
			return err
		}
		if err := op.node.Update(g.aggs, row); err != nil {
			return err
		}
	}

	if len(groups) == 0 && len(op.node.GroupBy()) == 0 {
		groups = append(groups, &group{aggs: op.node.CreateAggregations()})
	}
	op.out = make([]algebra.Row, 0, len(groups))
	for _, g := range groups {
		row, err := op.node.Emit(g.rep, g.aggs)
		if err != nil {
			return err
		}
		op.out = append(op.out, row)
	}
	return nil
}

func (op *AggregateOperator) Next() (algebra.Row, error) {
	if op.pos >= len(op.out) {
		return nil, EOF
	}
	row := op.out[op.pos]
	op.pos++
	return op.emit(row)
}

func (op *AggregateOperator) Close() error {
	op.report()
	op.out = nil
	return op.input.Close()
}

func (op *AggregateOperator) Schema() *algebra.RelationSchema { return op.node.OutputSchema() }

func keysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !algebra.ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
