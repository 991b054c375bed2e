package exec

import (
	"context"
	"errors"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/codec"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

// HashJoinOperator evaluates an equi-join by hashing the right input on its
// join columns. Rows whose key values have no canonical encoding are matched
// by scanning, so the result is always the same as a nested-loop join.
type HashJoinOperator struct {
	joinState
	conditions []algebra.JoinCondition
	table      map[string][]int
	// right rows that could not be hashed; candidates for every left row
	loose    []int
	all      []int
	fellBack bool
}

func NewHashJoin(left, right Operator, join *algebra.ThetaJoin) *HashJoinOperator {
	op := &HashJoinOperator{
		joinState: joinState{
			opStats: opStats{name: "hash_join"},
			join:    join,
			left:    left,
			right:   right,
		},
		conditions: join.Conditions(),
	}
	op.candidates = op.probe
	return op
}

func (op *HashJoinOperator) Open(ctx context.Context) error {
	if err := op.openInputs(ctx); err != nil {
		return err
	}
	op.table = make(map[string][]int, len(op.rightRows))
	op.loose, op.all, op.fellBack = nil, nil, false
	for i, row := range op.rightRows {
		key, err := op.key(row, algebra.RightSide)
		if errors.Is(err, codec.ErrUnhashable) {
			op.loose = append(op.loose, i)
			op.fallback()
			continue
		}
		if err != nil {
			return err
		}
		op.table[key] = append(op.table[key], i)
	}
	return nil
}

func (op *HashJoinOperator) probe(left algebra.Row) ([]int, error) {
	key, err := op.key(left, algebra.LeftSide)
	if errors.Is(err, codec.ErrUnhashable) {
		op.fallback()
		if op.all == nil {
			op.all = make([]int, len(op.rightRows))
			for i := range op.all {
				op.all[i] = i
			}
		}
		return op.all, nil
	}
	if err != nil {
		return nil, err
	}
	matches := op.table[key]
	if len(op.loose) == 0 {
		return matches, nil
	}
	cand := make([]int, 0, len(matches)+len(op.loose))
	cand = append(cand, matches...)
	return append(cand, op.loose...), nil
}

func (op *HashJoinOperator) key(row algebra.Row, side algebra.JoinSide) (string, error) {
	values := make([]any, len(op.conditions))
	for i, c := range op.conditions {
		name := c.LeftColumn
		if side == algebra.RightSide {
			name = c.RightColumn
		}
		v, err := row.Value(name)
		if err != nil {
			return "", err
		}
		values[i] = v
	}
	key, err := codec.EncodeKey(values...)
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func (op *HashJoinOperator) fallback() {
	if op.fellBack {
		return
	}
	op.fellBack = true
	metrics.HashJoinFallbacks.Inc()
	logger.DebugContext(op.ctx, "hash join key not hashable, scanning candidates",
		logger.Component("exec"),
		logger.String("join", op.join.String()),
	)
}
