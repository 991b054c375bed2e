package store

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/codec"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

// scanOperator decodes one relation's rows from a pebble snapshot.
type scanOperator struct {
	snap   *pebble.Snapshot
	iter   *pebble.Iterator
	schema *algebra.RelationSchema
	name   string
	ctx    context.Context
	rows   int64
	closed bool
}

func (op *scanOperator) Open(ctx context.Context) error {
	op.ctx = ctx
	if err := ctx.Err(); err != nil {
		return err
	}
	lower, upper := rowBounds(op.name)
	iter, err := op.snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("pebble iterator: %w", err)
	}
	op.iter = iter
	op.iter.First()
	return nil
}

func (op *scanOperator) Next() (algebra.Row, error) {
	if op.iter == nil {
		return nil, exec.EOF
	}
	if op.rows&1023 == 1023 {
		if err := op.ctx.Err(); err != nil {
			return nil, err
		}
	}
	if !op.iter.Valid() {
		if err := op.iter.Error(); err != nil {
			return nil, err
		}
		return nil, exec.EOF
	}
	values, err := codec.DecodeRow(op.iter.Value())
	if err != nil {
		return nil, fmt.Errorf("relation %q: %w", op.name, err)
	}
	op.iter.Next()
	row, err := algebra.NewRow(op.schema, values...)
	if err != nil {
		return nil, err
	}
	op.rows++
	return row, nil
}

func (op *scanOperator) Close() error {
	if op.closed {
		return nil
	}
	op.closed = true
	var err error
	if op.iter != nil {
		err = op.iter.Close()
	}
	if cerr := op.snap.Close(); err == nil {
		err = cerr
	}
	metrics.OperatorRows.WithLabelValues("store_scan").Add(float64(op.rows))
	ctx := op.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger.DebugContext(ctx, "operator closed",
		logger.Component("store"),
		logger.Operation("store_scan"),
		logger.Int64("rows", op.rows),
	)
	return err
}

func (op *scanOperator) Schema() *algebra.RelationSchema { return op.schema }
