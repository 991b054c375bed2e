package exec

import (
	"context"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/algebra/errors"
)

// Relation is a materialised relation: a schema and its rows.
type Relation struct {
	schema *algebra.RelationSchema
	rows   []algebra.Row
}

func NewRelation(schema *algebra.RelationSchema) *Relation {
	return &Relation{schema: schema}
}

// NewRelationFromValues builds a relation from positional row values.
func NewRelationFromValues(schema *algebra.RelationSchema, rows ...[]any) (*Relation, error) {
	r := NewRelation(schema)
	for _, values := range rows {
		if err := r.AppendValues(values...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Relation) Schema() *algebra.RelationSchema { return r.schema }

func (r *Relation) Name() string { return r.schema.Name() }

func (r *Relation) Len() int { return len(r.rows) }

// Rows returns the rows of r. The slice must not be modified.
func (r *Relation) Rows() []algebra.Row { return r.rows }

// AppendValues appends a row given positionally.
func (r *Relation) AppendValues(values ...any) error {
	row, err := algebra.NewRow(r.schema, values...)
	if err != nil {
		return err
	}
	r.rows = append(r.rows, row)
	return nil
}

// Append appends row, rebinding it to r's schema.
func (r *Relation) Append(row algebra.Row) error {
	bound, err := algebra.Rebind(row, r.schema)
	if err != nil {
		return err
	}
	r.rows = append(r.rows, bound)
	return nil
}

// Values returns every row as a value slice.
func (r *Relation) Values() [][]any {
	out := make([][]any, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Values()
	}
	return out
}

// Value returns the leaf plan node for r.
func (r *Relation) Value() *algebra.RelationalValue {
	return algebra.NewRelationalValue(r.schema)
}

// Scan returns an operator over r's rows bound to leaf's schema, which must
// have the same shape.
func (r *Relation) Scan(leaf *algebra.RelationalValue) (Operator, error) {
	schema := leaf.OutputSchema()
	if !schema.SameShape(r.schema) {
		return nil, errors.NewInvalidArgument("Relation.Scan", "relation %s does not match plan leaf %s", r.schema, schema)
	}
	return &ScanOperator{opStats: opStats{name: "scan"}, schema: schema, rows: r.rows}, nil
}

// ScanOperator streams a slice of rows.
type ScanOperator struct {
	opStats
	schema *algebra.RelationSchema
	rows   []algebra.Row
	pos    int
	cc     cancelCheck
}

func (op *ScanOperator) Open(ctx context.Context) error {
	op.open(ctx)
	op.pos = 0
	return nil
}

func (op *ScanOperator) Next() (algebra.Row, error) {
	if err := op.cc.check(op.ctx); err != nil {
		return nil, err
	}
	if op.pos >= len(op.rows) {
		return nil, EOF
	}
	row := op.rows[op.pos]
	op.pos++
	if row.Schema() != op.schema {
		var err error
		if row, err = algebra.Rebind(row, op.schema); err != nil {
			return nil, err
		}
	}
	return op.emit(row)
}

func (op *ScanOperator) Close() error {
	op.report()
	return nil
}

func (op *ScanOperator) Schema() *algebra.RelationSchema { return op.schema }
