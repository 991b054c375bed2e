package algebra

import (
	"github.com/guileen/memquery/algebra/errors"
)

// schemaDeriver is implemented by every operation. The output schema is
// purely a function of the input schemas and the operation's parameters.
type schemaDeriver interface {
	Operator() string
	outputColumnNames() ([]string, error)
	createColSpec(name string) (*ColSpec, error)
	outputRelationName() string
}

// deriveSchema builds an operation's output schema. Constructors call it
// eagerly so that invalid plans fail when they are built.
func deriveSchema(d schemaDeriver) (*RelationSchema, error) {
	names, err := d.outputColumnNames()
	if err != nil {
		return nil, err
	}
	relation := d.outputRelationName()
	seen := make(map[string]struct{}, len(names))
	cols := make([]*ColSpec, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, errors.NewSchemaConflict(d.Operator(), relation, name)
		}
		seen[name] = struct{}{}
		col, err := d.createColSpec(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return NewRelationSchema(relation, cols...)
}

type unaryOperation[P any] struct {
	op     string
	input  RelationalExpression
	params P
	schema *RelationSchema
}

func newUnaryOperation[P any](op string, input RelationalExpression, params P) (unaryOperation[P], error) {
	if input == nil {
		return unaryOperation[P]{}, errors.NewInvalidArgument(op, "input is required")
	}
	return unaryOperation[P]{op: op, input: input, params: params}, nil
}

func (u *unaryOperation[P]) Input() RelationalExpression   { return u.input }
func (u *unaryOperation[P]) Params() P                     { return u.params }
func (u *unaryOperation[P]) Operator() string              { return u.op }
func (u *unaryOperation[P]) OutputSchema() *RelationSchema { return u.schema }
func (u *unaryOperation[P]) RelationName() string          { return u.schema.Name() }
func (u *unaryOperation[P]) relationalExpression()         {}

func (u *unaryOperation[P]) inputSchema() *RelationSchema { return u.input.OutputSchema() }

func (u *unaryOperation[P]) outputRelationName() string { return u.input.RelationName() }

// passThrough is the createColSpec of operations that keep input columns.
func (u *unaryOperation[P]) passThrough(name string) (*ColSpec, error) {
	upstream, err := u.inputSchema().requireColumn(u.op, name)
	if err != nil {
		return nil, err
	}
	return &ColSpec{Name: name, Type: upstream.Type, Source: PassThrough(upstream)}, nil
}

// transform resolves every output column against input. The column sources
// built by createColSpec are the whole transformation.
func (u *unaryOperation[P]) transform(input Row) (Row, error) {
	out := NewMutableRow(u.schema)
	for i, col := range u.schema.columns {
		v, err := col.Resolve(input)
		if err != nil {
			return nil, err
		}
		out.Set(i, v)
	}
	return out.Row(), nil
}

type binaryOperation[P any] struct {
	op          string
	left, right RelationalExpression
	params      P
	schema      *RelationSchema
}

func newBinaryOperation[P any](op string, left, right RelationalExpression, params P) (binaryOperation[P], error) {
	if left == nil || right == nil {
		return binaryOperation[P]{}, errors.NewInvalidArgument(op, "both inputs are required")
	}
	return binaryOperation[P]{op: op, left: left, right: right, params: params}, nil
}

func (b *binaryOperation[P]) Left() RelationalExpression    { return b.left }
func (b *binaryOperation[P]) Right() RelationalExpression   { return b.right }
func (b *binaryOperation[P]) Params() P                     { return b.params }
func (b *binaryOperation[P]) Operator() string              { return b.op }
func (b *binaryOperation[P]) OutputSchema() *RelationSchema { return b.schema }
func (b *binaryOperation[P]) RelationName() string          { return b.schema.Name() }
func (b *binaryOperation[P]) relationalExpression()         {}

func (b *binaryOperation[P]) InputSchema(relationName string) (*RelationSchema, bool) {
	switch relationName {
	case b.left.RelationName():
		return b.left.OutputSchema(), true
	case b.right.RelationName():
		return b.right.OutputSchema(), true
	}
	return nil, false
}

func (b *binaryOperation[P]) SharedAttributes() []string {
	return b.left.OutputSchema().SharedColumns(b.right.OutputSchema())
}

func (b *binaryOperation[P]) outputRelationName() string {
	return b.left.RelationName() + "_" + b.right.RelationName()
}
