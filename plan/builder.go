package plan

import (
	stderrors "errors"
	"fmt"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/expr"
)

// Builder turns plan documents into algebra trees. Registry may be nil, in
// which case algebra.DefaultAggregations is used.
type Builder struct {
	Schemas  exec.SchemaLookup
	Compiler *expr.Compiler
	Registry *algebra.AggregationRegistry
}

// Build resolves scans through Schemas and compiles every expression.
// Failures are *BuildError values naming the path of the failing node, e.g.
// "plan.input.left (scan): ...", and keep their algebra error codes.
func (b *Builder) Build(n *Node) (algebra.RelationalExpression, error) {
	return b.build(n, "plan")
}

// BuildError locates a build failure in the plan tree.
type BuildError struct {
	Path string
	Op   string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Op, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func (b *Builder) build(n *Node, path string) (algebra.RelationalExpression, error) {
	if n == nil {
		return nil, &BuildError{Path: path, Err: errors.NewInvalidArgument("plan.Build", "missing node")}
	}
	out, err := b.node(n, path)
	if err != nil {
		var berr *BuildError
		if stderrors.As(err, &berr) {
			return nil, err
		}
		return nil, &BuildError{Path: path, Op: n.Op, Err: err}
	}
	return out, nil
}

func (b *Builder) compiler() (*expr.Compiler, error) {
	if b.Compiler == nil {
		return nil, errors.NewInvalidArgument("plan.Build", "plan has expressions but no compiler is configured")
	}
	return b.Compiler, nil
}

func (b *Builder) node(n *Node, path string) (algebra.RelationalExpression, error) {
	switch n.Op {
	case OpScan:
		schema, err := b.Schemas.Schema(n.Relation)
		if err != nil {
			return nil, err
		}
		return algebra.NewRelationalValue(schema), nil
	case OpJoin, OpCrossJoin, OpEquiJoin, OpNaturalJoin:
		return b.join(n, path)
	}

	input, err := b.build(n.Input, path+".input")
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpProject:
		return algebra.NewProjection(input, n.Columns...)
	case OpExtend:
		cols := make([]algebra.ProjectedColumn, len(n.Computed))
		for i, c := range n.Computed {
			cols[i] = algebra.ProjectedColumn{Name: c.Name}
			if c.Expr == "" {
				continue
			}
			compiler, err := b.compiler()
			if err != nil {
				return nil, err
			}
			e, err := compiler.Compile(input.OutputSchema(), c.Expr)
			if err != nil {
				return nil, err
			}
			cols[i].Expr = e
		}
		return algebra.NewExtendedProjection(input, cols...)
	case OpSelect:
		compiler, err := b.compiler()
		if err != nil {
			return nil, err
		}
		e, err := compiler.Compile(input.OutputSchema(), n.Predicate)
		if err != nil {
			return nil, err
		}
		return algebra.NewSelection(input, e)
	case OpRename:
		return algebra.NewRename(input, n.Relation, n.Mapping)
	case OpAggregate:
		specs := make([]algebra.AggregationSpec, len(n.Aggregations))
		for i, a := range n.Aggregations {
			specs[i] = algebra.NewAggregationSpec(algebra.AggregationKind(a.Kind), a.Column, a.As)
		}
		var opts []algebra.AggregationOption
		if b.Registry != nil {
			opts = append(opts, algebra.WithRegistry(b.Registry))
		}
		return algebra.NewAggregationOperation(input, n.GroupBy, specs, opts...)
	}
	return nil, errors.NewInvalidArgument("plan.Build", "unknown op %q", n.Op)
}

func (b *Builder) join(n *Node, path string) (algebra.RelationalExpression, error) {
	left, err := b.build(n.Left, path+".left")
	if err != nil {
		return nil, err
	}
	right, err := b.build(n.Right, path+".right")
	if err != nil {
		return nil, err
	}
	typ, err := algebra.ParseJoinType(n.Type)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpCrossJoin:
		return algebra.NewCrossJoin(left, right)
	case OpNaturalJoin:
		return algebra.NewNaturalJoin(left, right, typ)
	case OpEquiJoin:
		conds := make([]algebra.JoinCondition, len(n.On))
		for i, c := range n.On {
			conds[i] = algebra.JoinCondition{LeftColumn: c.Left, RightColumn: c.Right}
		}
		return algebra.NewEquiJoin(left, right, typ, conds...)
	}
	compiler, err := b.compiler()
	if err != nil {
		return nil, err
	}
	pred, err := compiler.CompileJoinPredicate(left.OutputSchema(), right.OutputSchema(), n.Predicate)
	if err != nil {
		return nil, err
	}
	return algebra.NewThetaJoin(left, right, typ, pred)
}
