package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// JoinType selects which input a shared column is read from and, for row
// drivers, which unmatched rows to pad.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "INNER"
	case JoinLeftOuter:
		return "LEFT_OUTER"
	case JoinRightOuter:
		return "RIGHT_OUTER"
	case JoinFullOuter:
		return "FULL_OUTER"
	}
	return fmt.Sprintf("JoinType(%d)", int(t))
}

// ParseJoinType accepts INNER, LEFT(_OUTER), RIGHT(_OUTER) and FULL(_OUTER),
// case-insensitively.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case "", "INNER":
		return JoinInner, nil
	case "LEFT", "LEFT_OUTER":
		return JoinLeftOuter, nil
	case "RIGHT", "RIGHT_OUTER":
		return JoinRightOuter, nil
	case "FULL", "FULL_OUTER":
		return JoinFullOuter, nil
	}
	return JoinInner, errors.NewInvalidArgument("ParseJoinType", "unknown join type %q", s)
}

// JoinSide identifies one input of a join.
type JoinSide int

const (
	LeftSide JoinSide = iota
	RightSide
)

func (s JoinSide) String() string {
	if s == RightSide {
		return "right"
	}
	return "left"
}

// JoinPredicate decides whether a pair of input rows matches.
type JoinPredicate func(left, right Row) (bool, error)

// JoinCondition equates a left column with a right column.
type JoinCondition struct {
	LeftColumn  string
	RightColumn string
}

func (c JoinCondition) String() string { return c.LeftColumn + "=" + c.RightColumn }

// JoinParams holds the parameters shared by all joins.
type JoinParams struct {
	Type       JoinType
	Conditions []JoinCondition
}

// Join is a θ-join. Match and Call only deal with matched pairs: padding
// unmatched rows for outer joins is left to the row driver, which can use
// SideOf to decide where each output column comes from.
type Join interface {
	BinaryOperation
	Type() JoinType
	Match(left, right Row) (bool, error)
	// Call builds the output row for a pair that satisfies Match.
	Call(left, right Row) (Row, error)
	// SideOf reports which input an output column is read from.
	SideOf(column string) (JoinSide, error)
}

// ThetaJoin is the general join; the concrete join kinds below differ only
// in their predicate and construction-time validation.
type ThetaJoin struct {
	binaryOperation[JoinParams]
	predicate JoinPredicate
	describe  string
	sides     []JoinSide
}

// NewThetaJoin joins on an arbitrary predicate.
func NewThetaJoin(left, right RelationalExpression, typ JoinType, predicate JoinPredicate) (*ThetaJoin, error) {
	if predicate == nil {
		return nil, errors.NewInvalidArgument("ThetaJoin", "predicate is required")
	}
	return newJoin("ThetaJoin", left, right, JoinParams{Type: typ}, predicate)
}

func newJoin(op string, left, right RelationalExpression, params JoinParams, predicate JoinPredicate) (*ThetaJoin, error) {
	if params.Type < JoinInner || params.Type > JoinFullOuter {
		return nil, errors.NewInvalidArgument(op, "invalid join type %d", int(params.Type))
	}
	base, err := newBinaryOperation(op, left, right, params)
	if err != nil {
		return nil, err
	}
	j := &ThetaJoin{binaryOperation: base, predicate: predicate}
	if j.schema, err = deriveSchema(j); err != nil {
		return nil, err
	}
	j.sides = make([]JoinSide, j.schema.Len())
	for i, col := range j.schema.columns {
		j.sides[i], _ = j.sideOf(col.Name)
	}
	return j, nil
}

func (j *ThetaJoin) Type() JoinType { return j.params.Type }

func (j *ThetaJoin) Match(left, right Row) (bool, error) { return j.predicate(left, right) }

func (j *ThetaJoin) Call(left, right Row) (Row, error) {
	out := NewMutableRow(j.schema)
	for i, col := range j.schema.columns {
		src := left
		if j.sides[i] == RightSide {
			src = right
		}
		v, err := src.Value(col.Name)
		if err != nil {
			return nil, err
		}
		out.Set(i, v)
	}
	return out.Row(), nil
}

func (j *ThetaJoin) SideOf(column string) (JoinSide, error) {
	i := j.schema.Index(column)
	if i < 0 {
		return LeftSide, errors.NewUnknownColumn(j.op, j.schema.Name(), column, j.schema.ColumnNames())
	}
	return j.sides[i], nil
}

// sideOf applies the static disambiguation rule: a column present in both
// inputs is read from the left unless the join is RIGHT_OUTER.
func (j *ThetaJoin) sideOf(name string) (JoinSide, bool) {
	inLeft := j.left.OutputSchema().HasColumn(name)
	inRight := j.right.OutputSchema().HasColumn(name)
	switch {
	case inLeft && inRight:
		if j.params.Type == JoinRightOuter {
			return RightSide, true
		}
		return LeftSide, true
	case inLeft:
		return LeftSide, true
	case inRight:
		return RightSide, true
	}
	return LeftSide, false
}

// Conditions returns the equality pairs of an equi-join; nil otherwise.
func (j *ThetaJoin) Conditions() []JoinCondition {
	out := make([]JoinCondition, len(j.params.Conditions))
	copy(out, j.params.Conditions)
	return out
}

func (j *ThetaJoin) outputColumnNames() ([]string, error) {
	names := j.left.OutputSchema().ColumnNames()
	for _, col := range j.right.OutputSchema().columns {
		if !j.left.OutputSchema().HasColumn(col.Name) {
			names = append(names, col.Name)
		}
	}
	return names, nil
}

func (j *ThetaJoin) createColSpec(name string) (*ColSpec, error) {
	side, ok := j.sideOf(name)
	if !ok {
		return nil, errors.NewUnknownColumn(j.op, j.outputRelationName(), name, nil)
	}
	input := j.left.OutputSchema()
	if side == RightSide {
		input = j.right.OutputSchema()
	}
	upstream, _ := input.Column(name)
	return &ColSpec{Name: name, Type: upstream.Type, Source: PassThrough(upstream)}, nil
}

func (j *ThetaJoin) String() string {
	if j.describe != "" {
		return fmt.Sprintf("%s[%s %s]", j.op, j.params.Type, j.describe)
	}
	return fmt.Sprintf("%s[%s]", j.op, j.params.Type)
}

// NewCrossJoin builds the Cartesian product of two inputs that share no
// attribute names.
func NewCrossJoin(left, right RelationalExpression) (*ThetaJoin, error) {
	if left == nil || right == nil {
		return nil, errors.NewInvalidArgument("CrossJoin", "both inputs are required")
	}
	if shared := left.OutputSchema().SharedColumns(right.OutputSchema()); len(shared) > 0 {
		return nil, errors.NewInvalidJoinInput("CrossJoin", shared)
	}
	return newJoin("CrossJoin", left, right, JoinParams{Type: JoinInner},
		func(Row, Row) (bool, error) { return true, nil })
}

// NewEquiJoin matches pairs whose listed columns are equal under
// ValuesEqual. With no conditions every pair matches.
func NewEquiJoin(left, right RelationalExpression, typ JoinType, conditions ...JoinCondition) (*ThetaJoin, error) {
	return newEquiJoin("EquiJoin", left, right, typ, conditions)
}

// NewNaturalJoin is an equi-join on every attribute name the inputs share.
// Inputs with no shared names yield a Cartesian product.
func NewNaturalJoin(left, right RelationalExpression, typ JoinType) (*ThetaJoin, error) {
	if left == nil || right == nil {
		return nil, errors.NewInvalidArgument("NaturalJoin", "both inputs are required")
	}
	shared := left.OutputSchema().SharedColumns(right.OutputSchema())
	conditions := make([]JoinCondition, len(shared))
	for i, name := range shared {
		conditions[i] = JoinCondition{LeftColumn: name, RightColumn: name}
	}
	return newEquiJoin("NaturalJoin", left, right, typ, conditions)
}

func newEquiJoin(op string, left, right RelationalExpression, typ JoinType, conditions []JoinCondition) (*ThetaJoin, error) {
	if left == nil || right == nil {
		return nil, errors.NewInvalidArgument(op, "both inputs are required")
	}
	conds := make([]JoinCondition, len(conditions))
	copy(conds, conditions)
	for _, c := range conds {
		if _, err := left.OutputSchema().requireColumn(op, c.LeftColumn); err != nil {
			return nil, err
		}
		if _, err := right.OutputSchema().requireColumn(op, c.RightColumn); err != nil {
			return nil, err
		}
	}

	predicate := func(l, r Row) (bool, error) {
		for _, c := range conds {
			lv, err := l.Value(c.LeftColumn)
			if err != nil {
				return false, err
			}
			rv, err := r.Value(c.RightColumn)
			if err != nil {
				return false, err
			}
			if !ValuesEqual(lv, rv) {
				return false, nil
			}
		}
		return true, nil
	}

	j, err := newJoin(op, left, right, JoinParams{Type: typ, Conditions: conds}, predicate)
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	j.describe = "on " + strings.Join(parts, ", ")
	return j, nil
}
