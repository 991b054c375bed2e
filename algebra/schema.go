package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/types"
)

// SourceKind tells how a column's value is obtained from an input row.
type SourceKind uint8

const (
	// SourceStored columns hold values directly; they belong to base relations.
	SourceStored SourceKind = iota
	// SourcePassThrough columns read the like-named column of the input row.
	SourcePassThrough
	// SourceRenamed columns read an input column under a different name.
	SourceRenamed
	// SourceComputed columns evaluate an expression against the input row.
	SourceComputed
	// SourceAggregated columns are produced by a per-group accumulator.
	SourceAggregated
)

func (k SourceKind) String() string {
	switch k {
	case SourceStored:
		return "stored"
	case SourcePassThrough:
		return "pass-through"
	case SourceRenamed:
		return "renamed"
	case SourceComputed:
		return "computed"
	case SourceAggregated:
		return "aggregated"
	}
	return fmt.Sprintf("SourceKind(%d)", uint8(k))
}

// ColumnSource is the closed set of strategies for producing a column value.
// Derived sources point at the upstream ColSpec instead of copying it.
type ColumnSource struct {
	Kind        SourceKind
	Upstream    *ColSpec
	Expr        Expression
	Aggregation *AggregationSpec
}

func Stored() ColumnSource { return ColumnSource{Kind: SourceStored} }

func PassThrough(upstream *ColSpec) ColumnSource {
	return ColumnSource{Kind: SourcePassThrough, Upstream: upstream}
}

func Renamed(upstream *ColSpec) ColumnSource {
	return ColumnSource{Kind: SourceRenamed, Upstream: upstream}
}

func Computed(expr Expression) ColumnSource {
	return ColumnSource{Kind: SourceComputed, Expr: expr}
}

func Aggregated(spec AggregationSpec) ColumnSource {
	return ColumnSource{Kind: SourceAggregated, Aggregation: &spec}
}

// ColSpec describes one column of a RelationSchema.
type ColSpec struct {
	Name   string
	Type   types.ColumnType
	Source ColumnSource
}

// NewColSpec returns a stored column, as used by base relations.
func NewColSpec(name string, typ types.ColumnType) *ColSpec {
	return &ColSpec{Name: name, Type: typ, Source: Stored()}
}

// Columns is shorthand for a list of stored columns of unknown type.
func Columns(names ...string) []*ColSpec {
	cols := make([]*ColSpec, len(names))
	for i, name := range names {
		cols[i] = NewColSpec(name, types.ColumnTypeUnknown)
	}
	return cols
}

// Resolve computes this column's value from a row of the input schema.
func (c *ColSpec) Resolve(input Row) (any, error) {
	switch c.Source.Kind {
	case SourcePassThrough, SourceRenamed:
		return input.Value(c.Source.Upstream.Name)
	case SourceComputed:
		v, err := c.Source.Expr.Evaluate(input)
		if err != nil {
			if errors.IsEvaluation(err) {
				return nil, err
			}
			return nil, errors.NewEvaluation(fmt.Sprintf("column %q", c.Name), err)
		}
		return v, nil
	default:
		return nil, errors.NewInvalidArgument("ColSpec.Resolve", "%s column %q cannot be resolved from an input row", c.Source.Kind, c.Name)
	}
}

// Origin follows pass-through and rename links back to the column they
// ultimately read from.
func (c *ColSpec) Origin() *ColSpec {
	cur := c
	for cur.Source.Upstream != nil {
		cur = cur.Source.Upstream
	}
	return cur
}

func (c *ColSpec) String() string {
	switch c.Source.Kind {
	case SourceRenamed:
		return fmt.Sprintf("%s<-%s", c.Name, c.Source.Upstream.Name)
	case SourceComputed:
		return fmt.Sprintf("%s:=%v", c.Name, c.Source.Expr)
	case SourceAggregated:
		return fmt.Sprintf("%s:=%s(%s)", c.Name, c.Source.Aggregation.Kind, c.Source.Aggregation.InputColumn)
	}
	return c.Name
}

// RelationSchema is an ordered list of uniquely named columns. It is immutable
// once constructed.
type RelationSchema struct {
	name    string
	columns []*ColSpec
	index   map[string]int
}

// NewRelationSchema validates column names and builds a schema.
func NewRelationSchema(name string, columns ...*ColSpec) (*RelationSchema, error) {
	s := &RelationSchema{
		name:    name,
		columns: make([]*ColSpec, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil || col.Name == "" {
			return nil, errors.NewInvalidArgument("RelationSchema", "column %d of relation %q has no name", i, name)
		}
		if _, dup := s.index[col.Name]; dup {
			return nil, errors.NewSchemaConflict("RelationSchema", name, col.Name)
		}
		s.index[col.Name] = len(s.columns)
		s.columns = append(s.columns, col)
	}
	return s, nil
}

// NewBaseSchema builds a schema of stored, untyped columns.
func NewBaseSchema(name string, columnNames ...string) (*RelationSchema, error) {
	return NewRelationSchema(name, Columns(columnNames...)...)
}

func (s *RelationSchema) Name() string { return s.name }

func (s *RelationSchema) Len() int { return len(s.columns) }

// Columns returns a copy of the column list.
func (s *RelationSchema) Columns() []*ColSpec {
	out := make([]*ColSpec, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *RelationSchema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

func (s *RelationSchema) ColumnAt(i int) *ColSpec { return s.columns[i] }

func (s *RelationSchema) Column(name string) (*ColSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.columns[i], true
}

// Index returns the position of name, or -1.
func (s *RelationSchema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

func (s *RelationSchema) HasColumn(name string) bool {
	_, ok := s.index[name]
	return ok
}

// SharedColumns returns the names present in both schemas, in s's order.
func (s *RelationSchema) SharedColumns(other *RelationSchema) []string {
	var shared []string
	for _, col := range s.columns {
		if other.HasColumn(col.Name) {
			shared = append(shared, col.Name)
		}
	}
	return shared
}

// SameShape reports whether both schemas have the same column names in the
// same order, regardless of relation name.
func (s *RelationSchema) SameShape(other *RelationSchema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, col := range s.columns {
		if col.Name != other.columns[i].Name {
			return false
		}
	}
	return true
}

// Equal is SameShape plus an equal relation name.
func (s *RelationSchema) Equal(other *RelationSchema) bool {
	return s.name == other.name && s.SameShape(other)
}

func (s *RelationSchema) requireColumn(op, name string) (*ColSpec, error) {
	col, ok := s.Column(name)
	if !ok {
		return nil, errors.NewUnknownColumn(op, s.name, name, s.ColumnNames())
	}
	return col, nil
}

func (s *RelationSchema) String() string {
	var sb strings.Builder
	sb.WriteString(s.name)
	sb.WriteByte('(')
	for i, col := range s.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		if col.Type != types.ColumnTypeUnknown {
			sb.WriteByte(' ')
			sb.WriteString(string(col.Type))
		}
	}
	sb.WriteByte(')')
	return sb.String()
}
