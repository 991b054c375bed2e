package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// RelationalExpression is a node of a query plan: either a *RelationalValue
// leaf or an operation implementing UnaryOperation or BinaryOperation. The set
// of implementations is closed to this package.
type RelationalExpression interface {
	// OutputSchema returns the schema of the rows this node produces. It is
	// computed when the node is constructed.
	OutputSchema() *RelationSchema
	RelationName() string
	String() string

	relationalExpression()
}

// UnaryOperation is an operation with one input.
type UnaryOperation interface {
	RelationalExpression
	Input() RelationalExpression
	Operator() string
}

// StreamableUnaryOperation turns one input row into one output row.
type StreamableUnaryOperation interface {
	UnaryOperation
	Transform(input Row) (Row, error)
}

// BinaryOperation is an operation with two inputs.
type BinaryOperation interface {
	RelationalExpression
	Left() RelationalExpression
	Right() RelationalExpression
	Operator() string
	// InputSchema returns the input schema with the given relation name. When
	// both inputs share a name the left one is returned.
	InputSchema(relationName string) (*RelationSchema, bool)
	// SharedAttributes lists the column names present in both inputs, in left
	// input order.
	SharedAttributes() []string
}

// RelationalValue is a leaf wrapping the schema of a base relation.
type RelationalValue struct {
	schema *RelationSchema
}

func NewRelationalValue(schema *RelationSchema) *RelationalValue {
	return &RelationalValue{schema: schema}
}

func (v *RelationalValue) OutputSchema() *RelationSchema { return v.schema }
func (v *RelationalValue) RelationName() string          { return v.schema.Name() }
func (v *RelationalValue) String() string                { return "Value " + v.schema.String() }
func (v *RelationalValue) relationalExpression()         {}

// Walk visits every node of expr. A unary node is visited after its input; a
// binary node is visited after its left subtree and before its right subtree.
// Plan printers rely on this order. The first error returned by fn stops the
// walk.
func Walk(expr RelationalExpression, fn func(RelationalExpression) error) error {
	return walk(expr, 0, func(n RelationalExpression, _ int) error { return fn(n) })
}

func walk(expr RelationalExpression, depth int, fn func(RelationalExpression, int) error) error {
	switch n := expr.(type) {
	case *RelationalValue:
		return fn(n, depth)
	case UnaryOperation:
		if err := walk(n.Input(), depth+1, fn); err != nil {
			return err
		}
		return fn(n, depth)
	case BinaryOperation:
		if err := walk(n.Left(), depth+1, fn); err != nil {
			return err
		}
		if err := fn(n, depth); err != nil {
			return err
		}
		return walk(n.Right(), depth+1, fn)
	default:
		return errors.NewInvalidArgument("Walk", "unsupported plan node %T", expr)
	}
}

// Explain renders expr one node per line in Walk order, indented by depth.
func Explain(expr RelationalExpression) string {
	var sb strings.Builder
	_ = walk(expr, 0, func(n RelationalExpression, depth int) error {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.String())
		if _, leaf := n.(*RelationalValue); !leaf {
			fmt.Fprintf(&sb, " -> %s", n.OutputSchema())
		}
		sb.WriteByte('\n')
		return nil
	})
	return sb.String()
}
