package algebra

import (
	"fmt"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// AggregationParams holds the parameters of an AggregationOperation.
type AggregationParams struct {
	GroupBy      []string
	Aggregations []AggregationSpec
}

// AggregationOperation (𝒢) partitions its input by the grouping attributes and
// reduces each partition with fresh accumulators. The row driver owns the
// partitioning: it calls CreateAggregations once per group, feeds the group's
// rows to every accumulator, then calls Emit.
type AggregationOperation struct {
	unaryOperation[AggregationParams]
	factories map[AggregationSpec]AggregationFactory
}

// AggregationOption configures NewAggregationOperation.
type AggregationOption func(*aggregationOptions)

type aggregationOptions struct {
	registry *AggregationRegistry
}

// WithRegistry resolves aggregation kinds against reg instead of
// DefaultAggregations.
func WithRegistry(reg *AggregationRegistry) AggregationOption {
	return func(o *aggregationOptions) { o.registry = reg }
}

func NewAggregationOperation(input RelationalExpression, groupBy []string, specs []AggregationSpec, opts ...AggregationOption) (*AggregationOperation, error) {
	options := aggregationOptions{registry: DefaultAggregations}
	for _, opt := range opts {
		opt(&options)
	}

	params := AggregationParams{
		GroupBy:      append([]string(nil), groupBy...),
		Aggregations: append([]AggregationSpec(nil), specs...),
	}
	base, err := newUnaryOperation("Aggregation", input, params)
	if err != nil {
		return nil, err
	}
	a := &AggregationOperation{unaryOperation: base, factories: make(map[AggregationSpec]AggregationFactory, len(specs))}

	inputSchema := input.OutputSchema()
	for _, spec := range params.Aggregations {
		if spec.OutputName == "" {
			return nil, errors.NewInvalidArgument(a.op, "aggregation %s has no output name", spec)
		}
		if _, dup := a.factories[spec]; dup {
			return nil, errors.NewSchemaConflict(a.op, input.RelationName(), spec.OutputName)
		}
		if spec.InputColumn != "" {
			if _, err := inputSchema.requireColumn(a.op, spec.InputColumn); err != nil {
				return nil, err
			}
		} else if needsInput(spec.Kind) {
			return nil, errors.NewInvalidArgument(a.op, "aggregation %s needs an input column", spec)
		}
		factory, err := options.registry.Lookup(spec.Kind)
		if err != nil {
			return nil, errors.NewUnknownAggregation(a.op, string(spec.Kind))
		}
		a.factories[spec] = factory
	}

	if a.schema, err = deriveSchema(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AggregationOperation) GroupBy() []string {
	return append([]string(nil), a.params.GroupBy...)
}

func (a *AggregationOperation) Aggregations() []AggregationSpec {
	return append([]AggregationSpec(nil), a.params.Aggregations...)
}

// CreateAggregations returns a brand-new accumulator per spec. Every call
// yields distinct instances.
func (a *AggregationOperation) CreateAggregations() map[AggregationSpec]Aggregation {
	aggs := make(map[AggregationSpec]Aggregation, len(a.factories))
	for spec, factory := range a.factories {
		aggs[spec] = factory(spec)
	}
	return aggs
}

// Update feeds one input row to every accumulator of a group.
func (a *AggregationOperation) Update(aggs map[AggregationSpec]Aggregation, row Row) error {
	for _, spec := range a.params.Aggregations {
		agg, ok := aggs[spec]
		if !ok {
			return errors.NewInvalidArgument(a.op, "missing accumulator for %s", spec)
		}
		if err := agg.Update(row); err != nil {
			return err
		}
	}
	return nil
}

// Emit builds the output row of one group. representative is any input row
// of the group (nil for the single group of an ungrouped, empty input).
func (a *AggregationOperation) Emit(representative Row, aggs map[AggregationSpec]Aggregation) (Row, error) {
	out := NewMutableRow(a.schema)
	for i, col := range a.schema.columns {
		switch col.Source.Kind {
		case SourcePassThrough:
			if representative == nil {
				continue
			}
			v, err := representative.Value(col.Source.Upstream.Name)
			if err != nil {
				return nil, err
			}
			out.Set(i, v)
		case SourceAggregated:
			spec := *col.Source.Aggregation
			agg, ok := aggs[spec]
			if !ok {
				return nil, errors.NewInvalidArgument(a.op, "missing accumulator for %s", spec)
			}
			v, err := agg.Result()
			if err != nil {
				return nil, err
			}
			out.Set(i, v)
		}
	}
	return out.Row(), nil
}

// GroupKey returns the grouping attribute values of row, in GroupBy order.
func (a *AggregationOperation) GroupKey(row Row) ([]any, error) {
	key := make([]any, len(a.params.GroupBy))
	for i, name := range a.params.GroupBy {
		v, err := row.Value(name)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

func (a *AggregationOperation) outputColumnNames() ([]string, error) {
	names := a.GroupBy()
	for _, spec := range a.params.Aggregations {
		names = append(names, spec.OutputName)
	}
	return names, nil
}

func (a *AggregationOperation) createColSpec(name string) (*ColSpec, error) {
	for _, spec := range a.params.Aggregations {
		if spec.OutputName == name {
			return &ColSpec{Name: name, Source: Aggregated(spec)}, nil
		}
	}
	return a.passThrough(name)
}

func (a *AggregationOperation) String() string {
	aggs := make([]string, len(a.params.Aggregations))
	for i, spec := range a.params.Aggregations {
		aggs[i] = spec.String()
	}
	return fmt.Sprintf("Aggregation[group by %s; %s]", strings.Join(a.params.GroupBy, ", "), strings.Join(aggs, ", "))
}
