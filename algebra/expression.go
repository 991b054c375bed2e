package algebra

import (
	"fmt"

	"github.com/guileen/memquery/algebra/errors"
)

// Expression is a row-to-value function. Selection evaluates one as a
// predicate; ExtendedProjection evaluates one per computed column.
// Implementations must be safe to call from multiple goroutines.
type Expression interface {
	Evaluate(row Row) (any, error)
}

// ExpressionFunc adapts a plain function to Expression.
type ExpressionFunc func(row Row) (any, error)

func (f ExpressionFunc) Evaluate(row Row) (any, error) { return f(row) }

func (f ExpressionFunc) String() string { return "func" }

type columnRef string

// Col reads a column of the input row.
func Col(name string) Expression { return columnRef(name) }

func (c columnRef) Evaluate(row Row) (any, error) { return row.Value(string(c)) }

func (c columnRef) String() string { return string(c) }

type constant struct{ v any }

// Const always yields v.
func Const(v any) Expression { return constant{v: v} }

func (c constant) Evaluate(Row) (any, error) { return c.v, nil }

func (c constant) String() string { return fmt.Sprintf("%#v", c.v) }

type equals struct{ left, right Expression }

// Eq compares two expressions with ValuesEqual.
func Eq(left, right Expression) Expression { return equals{left: left, right: right} }

func (e equals) Evaluate(row Row) (any, error) {
	l, err := e.left.Evaluate(row)
	if err != nil {
		return nil, err
	}
	r, err := e.right.Evaluate(row)
	if err != nil {
		return nil, err
	}
	return ValuesEqual(l, r), nil
}

func (e equals) String() string { return fmt.Sprintf("%v = %v", e.left, e.right) }

// EvaluatePredicate evaluates expr as a boolean. Nil counts as false; any
// other non-bool result is an evaluation error.
func EvaluatePredicate(expr Expression, row Row) (bool, error) {
	v, err := expr.Evaluate(row)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return false, errors.NewEvaluation("predicate", fmt.Errorf("expected bool, got %T", v))
}
