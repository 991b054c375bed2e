package exec

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

// Options tunes an Executor.
type Options struct {
	// HashJoin evaluates equi-joins with a hash table instead of nested loops.
	HashJoin bool
	// MaxRows fails a query that produces more rows; 0 means no limit.
	MaxRows int
}

func DefaultOptions() Options {
	return Options{HashJoin: true}
}

// Executor runs algebra plans against a Source.
type Executor struct {
	source Source
	opts   Options
}

func NewExecutor(source Source, opts Options) *Executor {
	return &Executor{source: source, opts: opts}
}

// Build turns a plan into an unopened operator tree.
func (e *Executor) Build(ctx context.Context, expr algebra.RelationalExpression) (Operator, error) {
	switch n := expr.(type) {
	case *algebra.RelationalValue:
		return e.source.Scan(ctx, n)
	case *algebra.Selection:
		input, err := e.Build(ctx, n.Input())
		if err != nil {
			return nil, err
		}
		return NewFilter(input, n), nil
	case *algebra.AggregationOperation:
		input, err := e.Build(ctx, n.Input())
		if err != nil {
			return nil, err
		}
		return NewAggregate(input, n), nil
	case algebra.StreamableUnaryOperation:
		input, err := e.Build(ctx, n.Input())
		if err != nil {
			return nil, err
		}
		return NewTransform(input, n), nil
	case algebra.Join:
		left, err := e.Build(ctx, n.Left())
		if err != nil {
			return nil, err
		}
		right, err := e.Build(ctx, n.Right())
		if err != nil {
			return nil, err
		}
		if tj, ok := n.(*algebra.ThetaJoin); ok && e.opts.HashJoin && len(tj.Conditions()) > 0 {
			return NewHashJoin(left, right, tj), nil
		}
		return NewNestedLoopJoin(left, right, n), nil
	}
	return nil, errors.NewInvalidArgument("Executor.Build", "no physical operator for plan node %T", expr)
}

// Stream runs expr and calls fn for every output row. It stops at the first
// error from fn.
func (e *Executor) Stream(ctx context.Context, expr algebra.RelationalExpression, fn func(algebra.Row) error) (err error) {
	if logger.QueryID(ctx) == "" {
		ctx = logger.WithQueryID(ctx, uuid.NewString())
	}
	start := time.Now()
	var rows int
	defer func() {
		metrics.QueriesTotal.WithLabelValues(metrics.Status(err)).Inc()
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			logger.WarnContext(ctx, "query failed",
				logger.Component("exec"),
				logger.ErrorField(err),
				logger.Duration("duration", time.Since(start)),
			)
			return
		}
		logger.DebugContext(ctx, "query finished",
			logger.Component("exec"),
			logger.Int("rows", rows),
			logger.Duration("duration", time.Since(start)),
		)
	}()

	op, err := e.Build(ctx, expr)
	if err != nil {
		return err
	}
	if err := op.Open(ctx); err != nil {
		_ = op.Close()
		return err
	}
	defer func() {
		if cerr := op.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var cc cancelCheck
	for {
		if err := cc.check(ctx); err != nil {
			return err
		}
		row, err := op.Next()
		if err == EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rows++
		if e.opts.MaxRows > 0 && rows > e.opts.MaxRows {
			return errors.NewRowLimit("Executor.Stream", e.opts.MaxRows)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Execute runs expr and materialises the result.
func (e *Executor) Execute(ctx context.Context, expr algebra.RelationalExpression) (*Relation, error) {
	out := NewRelation(expr.OutputSchema())
	err := e.Stream(ctx, expr, func(row algebra.Row) error {
		return out.Append(row)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
