package exec

import (
	"context"

	"github.com/guileen/memquery/algebra"
)

// FilterOperator drops the rows a Selection does not match.
type FilterOperator struct {
	opStats
	input     Operator
	selection *algebra.Selection
}

func NewFilter(input Operator, selection *algebra.Selection) *FilterOperator {
	return &FilterOperator{opStats: opStats{name: "filter"}, input: input, selection: selection}
}

func (op *FilterOperator) Open(ctx context.Context) error {
	op.open(ctx)
	return op.input.Open(ctx)
}

func (op *FilterOperator) Next() (algebra.Row, error) {
	for {
		row, err := op.input.Next()
		if err != nil {
			return nil, err
		}
		match, err := op.selection.Matches(row)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		out, err := op.selection.Transform(row)
		if err != nil {
			return nil, err
		}
		return op.emit(out)
	}
}

func (op *FilterOperator) Close() error {
	op.report()
	return op.input.Close()
}

func (op *FilterOperator) Schema() *algebra.RelationSchema { return op.selection.OutputSchema() }

// TransformOperator maps every input row through a streamable unary
// operation (projection, extended projection, rename).
type TransformOperator struct {
	opStats
	input Operator
	node  algebra.StreamableUnaryOperation
}

func NewTransform(input Operator, node algebra.StreamableUnaryOperation) *TransformOperator {
	return &TransformOperator{opStats: opStats{name: "transform"}, input: input, node: node}
}

func (op *TransformOperator) Open(ctx context.Context) error {
	op.open(ctx)
	return op.input.Open(ctx)
}

func (op *TransformOperator) Next() (algebra.Row, error) {
	row, err := op.input.Next()
	if err != nil {
		return nil, err
	}
	out, err := op.node.Transform(row)
	if err != nil {
		return nil, err
	}
	return op.emit(out)
}

func (op *TransformOperator) Close() error {
	op.report()
	return op.input.Close()
}

func (op *TransformOperator) Schema() *algebra.RelationSchema { return op.node.OutputSchema() }
