package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// Projection (π) keeps the named input columns, in the given order.
type Projection struct {
	unaryOperation[[]string]
}

func NewProjection(input RelationalExpression, attributes ...string) (*Projection, error) {
	attrs := make([]string, len(attributes))
	copy(attrs, attributes)
	base, err := newUnaryOperation("Projection", input, attrs)
	if err != nil {
		return nil, err
	}
	p := &Projection{unaryOperation: base}
	if p.schema, err = deriveSchema(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Attributes returns the projected column names.
func (p *Projection) Attributes() []string {
	out := make([]string, len(p.params))
	copy(out, p.params)
	return out
}

func (p *Projection) outputColumnNames() ([]string, error) { return p.Attributes(), nil }

func (p *Projection) createColSpec(name string) (*ColSpec, error) { return p.passThrough(name) }

func (p *Projection) Transform(input Row) (Row, error) { return p.transform(input) }

func (p *Projection) String() string {
	return fmt.Sprintf("Projection[%s]", strings.Join(p.params, ", "))
}

// Star, used as a ProjectedColumn name, stands for every input column.
const Star = "*"

// ProjectedColumn is one entry of an ExtendedProjection. A nil Expr passes the
// like-named input column through.
type ProjectedColumn struct {
	Name string
	Expr Expression
}

// ExtendedProjection computes new columns from expressions over the input
// row, optionally keeping all input columns via Star.
type ExtendedProjection struct {
	unaryOperation[[]ProjectedColumn]
	exprs map[string]Expression
}

func NewExtendedProjection(input RelationalExpression, columns ...ProjectedColumn) (*ExtendedProjection, error) {
	cols := make([]ProjectedColumn, len(columns))
	copy(cols, columns)
	base, err := newUnaryOperation("ExtendedProjection", input, cols)
	if err != nil {
		return nil, err
	}
	p := &ExtendedProjection{unaryOperation: base, exprs: make(map[string]Expression, len(cols))}
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.NewInvalidArgument(p.op, "projected column has no name")
		}
		if c.Name == Star && c.Expr != nil {
			return nil, errors.NewInvalidArgument(p.op, "%s cannot carry an expression", Star)
		}
		if _, dup := p.exprs[c.Name]; dup {
			return nil, errors.NewSchemaConflict(p.op, input.RelationName(), c.Name)
		}
		p.exprs[c.Name] = c.Expr
	}
	if p.schema, err = deriveSchema(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Columns returns the projection entries in insertion order.
func (p *ExtendedProjection) Columns() []ProjectedColumn {
	out := make([]ProjectedColumn, len(p.params))
	copy(out, p.params)
	return out
}

func (p *ExtendedProjection) outputColumnNames() ([]string, error) {
	var names []string
	if _, ok := p.exprs[Star]; ok {
		names = p.inputSchema().ColumnNames()
	}
	for _, c := range p.params {
		if c.Name != Star {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

func (p *ExtendedProjection) createColSpec(name string) (*ColSpec, error) {
	expr, ok := p.exprs[name]
	if !ok || expr == nil {
		// Star-expanded input columns and nil entries both pass through.
		return p.passThrough(name)
	}
	return &ColSpec{Name: name, Source: Computed(expr)}, nil
}

func (p *ExtendedProjection) Transform(input Row) (Row, error) { return p.transform(input) }

func (p *ExtendedProjection) String() string {
	parts := make([]string, len(p.params))
	for i, c := range p.params {
		if c.Expr == nil {
			parts[i] = c.Name
		} else {
			parts[i] = fmt.Sprintf("%s:=%v", c.Name, c.Expr)
		}
	}
	return fmt.Sprintf("ExtendedProjection[%s]", strings.Join(parts, ", "))
}

// Selection (σ) carries a predicate for the row driver. Its output schema has
// the same name and columns as its input; the node never drops rows itself.
type Selection struct {
	unaryOperation[Expression]
}

func NewSelection(input RelationalExpression, predicate Expression) (*Selection, error) {
	base, err := newUnaryOperation("Selection", input, predicate)
	if err != nil {
		return nil, err
	}
	if predicate == nil {
		return nil, errors.NewInvalidArgument(base.op, "predicate is required")
	}
	s := &Selection{unaryOperation: base}
	if s.schema, err = deriveSchema(s); err != nil {
		return nil, err
	}
	return s, nil
}

// FilterExpression returns the selection predicate.
func (s *Selection) FilterExpression() Expression { return s.params }

// Matches evaluates the predicate against a row of the input schema.
func (s *Selection) Matches(row Row) (bool, error) {
	return EvaluatePredicate(s.params, row)
}

func (s *Selection) outputColumnNames() ([]string, error) {
	return s.inputSchema().ColumnNames(), nil
}

func (s *Selection) createColSpec(name string) (*ColSpec, error) { return s.passThrough(name) }

func (s *Selection) Transform(input Row) (Row, error) { return s.transform(input) }

func (s *Selection) String() string {
	return fmt.Sprintf("Selection[%v]", s.params)
}
