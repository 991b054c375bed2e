package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// Row is a tuple bound to exactly one schema. Rows handed out by the engine
// are never mutated afterwards and may be shared for reading.
type Row interface {
	Schema() *RelationSchema
	// Value returns the value of the named column.
	Value(name string) (any, error)
	// At returns the value at a column position of Schema().
	At(i int) any
	// Values returns a copy of the row's values in schema order.
	Values() []any
}

type tuple struct {
	schema *RelationSchema
	values []any
}

// NewRow binds values to schema positionally.
func NewRow(schema *RelationSchema, values ...any) (Row, error) {
	if len(values) != schema.Len() {
		return nil, errors.NewInvalidArgument("NewRow", "relation %q has %d columns, got %d values", schema.Name(), schema.Len(), len(values))
	}
	vals := make([]any, len(values))
	copy(vals, values)
	return &tuple{schema: schema, values: vals}, nil
}

// NewRowFromMap binds a column-name keyed map to schema. Missing columns are
// nil; keys that are not columns of schema are an error.
func NewRowFromMap(schema *RelationSchema, data map[string]any) (Row, error) {
	row := NewMutableRow(schema)
	for name, v := range data {
		if err := row.SetValue(name, v); err != nil {
			return nil, err
		}
	}
	return row.Row(), nil
}

func (t *tuple) Schema() *RelationSchema { return t.schema }

func (t *tuple) Value(name string) (any, error) {
	i := t.schema.Index(name)
	if i < 0 {
		return nil, errors.NewUnknownColumn("Row.Value", t.schema.Name(), name, t.schema.ColumnNames())
	}
	return t.values[i], nil
}

func (t *tuple) At(i int) any { return t.values[i] }

func (t *tuple) Values() []any {
	out := make([]any, len(t.values))
	copy(out, t.values)
	return out
}

func (t *tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, col := range t.schema.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", col.Name, t.values[i])
	}
	sb.WriteByte(')')
	return sb.String()
}

// MutableRow is the single-owner builder for an output row. Once Row has been
// called the builder must not be used again.
type MutableRow struct {
	tuple
}

// NewMutableRow returns a builder with every column set to nil.
func NewMutableRow(schema *RelationSchema) *MutableRow {
	return &MutableRow{tuple{schema: schema, values: make([]any, schema.Len())}}
}

// SetValue sets the named column.
func (m *MutableRow) SetValue(name string, v any) error {
	i := m.schema.Index(name)
	if i < 0 {
		return errors.NewUnknownColumn("MutableRow.SetValue", m.schema.Name(), name, m.schema.ColumnNames())
	}
	m.values[i] = v
	return nil
}

// Set sets the column at position i.
func (m *MutableRow) Set(i int, v any) {
	m.values[i] = v
}

// Row finalises the builder.
func (m *MutableRow) Row() Row {
	return &m.tuple
}

// RowMap returns the row as a column-name keyed map.
func RowMap(row Row) map[string]any {
	schema := row.Schema()
	out := make(map[string]any, schema.Len())
	for i, col := range schema.columns {
		out[col.Name] = row.At(i)
	}
	return out
}

// Rebind attaches row's values to another schema of the same shape.
func Rebind(row Row, schema *RelationSchema) (Row, error) {
	if row.Schema() == schema {
		return row, nil
	}
	if !row.Schema().SameShape(schema) {
		return nil, errors.NewInvalidArgument("Rebind", "row of %s does not fit %s", row.Schema(), schema)
	}
	return &tuple{schema: schema, values: row.Values()}, nil
}
