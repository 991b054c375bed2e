// Package exec evaluates algebra plans over in-memory rows. Executor turns a
// plan into a tree of pull-based physical operators, one per plan node.
package exec

import (
	"context"
	"io"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

// Operator is a pull-based physical operator. Next returns EOF once the
// operator is exhausted.
type Operator interface {
	Open(ctx context.Context) error
	Next() (algebra.Row, error)
	Close() error
	Schema() *algebra.RelationSchema
}

var EOF = io.EOF

// opStats counts rows produced by one operator and reports them on close.
type opStats struct {
	name string
	ctx  context.Context
	rows int64
}

func (s *opStats) open(ctx context.Context) {
	s.ctx = ctx
	s.rows = 0
}

func (s *opStats) emit(row algebra.Row) (algebra.Row, error) {
	s.rows++
	return row, nil
}

func (s *opStats) report() {
	metrics.OperatorRows.WithLabelValues(s.name).Add(float64(s.rows))
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger.DebugContext(ctx, "operator closed",
		logger.Component("exec"),
		logger.Operation(s.name),
		logger.Int64("rows", s.rows),
	)
}

// cancelled checks ctx every 1024 calls.
type cancelCheck struct {
	n int
}

func (c *cancelCheck) check(ctx context.Context) error {
	c.n++
	if c.n&1023 != 0 || ctx == nil {
		return nil
	}
	return ctx.Err()
}

// drain reads every remaining row of op.
func drain(op Operator) ([]algebra.Row, error) {
	var rows []algebra.Row
	for {
		row, err := op.Next()
		if err == EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
