package algebra

import (
	"fmt"
	"sort"
	"sync"

	"github.com/guileen/memquery/algebra/errors"
)

// AggregationKind names an aggregation implementation in a registry.
type AggregationKind string

const (
	AggCount         AggregationKind = "count"
	AggSum           AggregationKind = "sum"
	AggAvg           AggregationKind = "avg"
	AggMin           AggregationKind = "min"
	AggMax           AggregationKind = "max"
	AggCountDistinct AggregationKind = "count_distinct"
)

// AggregationSpec declares one aggregate output column. An empty InputColumn
// is only meaningful for count-like kinds and means "every row".
type AggregationSpec struct {
	InputColumn string
	Kind        AggregationKind
	OutputName  string
}

func NewAggregationSpec(kind AggregationKind, inputColumn, outputName string) AggregationSpec {
	return AggregationSpec{InputColumn: inputColumn, Kind: kind, OutputName: outputName}
}

func (s AggregationSpec) String() string {
	input := s.InputColumn
	if input == "" {
		input = "*"
	}
	return fmt.Sprintf("%s(%s) AS %s", s.Kind, input, s.OutputName)
}

// Aggregation is a per-group accumulator. A fresh instance is created for
// every group; instances are never shared.
type Aggregation interface {
	Update(row Row) error
	Result() (any, error)
}

// AggregationFactory returns a new accumulator for spec.
type AggregationFactory func(spec AggregationSpec) Aggregation

// AggregationRegistry maps aggregation kinds to factories.
type AggregationRegistry struct {
	mu        sync.RWMutex
	factories map[AggregationKind]AggregationFactory
}

// NewAggregationRegistry returns a registry holding the built-in kinds.
func NewAggregationRegistry() *AggregationRegistry {
	r := &AggregationRegistry{factories: make(map[AggregationKind]AggregationFactory)}
	r.factories[AggCount] = func(s AggregationSpec) Aggregation { return &countAgg{spec: s} }
	r.factories[AggSum] = func(s AggregationSpec) Aggregation { return &sumAgg{spec: s} }
	r.factories[AggAvg] = func(s AggregationSpec) Aggregation { return &avgAgg{spec: s} }
	r.factories[AggMin] = func(s AggregationSpec) Aggregation { return &extremumAgg{spec: s, want: -1} }
	r.factories[AggMax] = func(s AggregationSpec) Aggregation { return &extremumAgg{spec: s, want: 1} }
	r.factories[AggCountDistinct] = func(s AggregationSpec) Aggregation {
		return &countDistinctAgg{spec: s, seen: make(map[any]struct{})}
	}
	return r
}

// DefaultAggregations is the registry used when an operation is built
// without WithRegistry.
var DefaultAggregations = NewAggregationRegistry()

// Register adds or replaces the factory for kind.
func (r *AggregationRegistry) Register(kind AggregationKind, factory AggregationFactory) error {
	if kind == "" || factory == nil {
		return errors.NewInvalidArgument("AggregationRegistry.Register", "kind and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
	return nil
}

// Lookup returns the factory for kind.
func (r *AggregationRegistry) Lookup(kind AggregationKind) (AggregationFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, errors.NewUnknownAggregation("AggregationRegistry.Lookup", string(kind))
	}
	return f, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *AggregationRegistry) Kinds() []AggregationKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]AggregationKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// needsInput reports whether a built-in kind reads an input column.
func needsInput(kind AggregationKind) bool {
	switch kind {
	case AggSum, AggAvg, AggMin, AggMax, AggCountDistinct:
		return true
	}
	return false
}

func inputValue(spec AggregationSpec, row Row) (any, error) {
	if spec.InputColumn == "" {
		return nil, errors.NewInvalidArgument(string(spec.Kind), "aggregation %s needs an input column", spec.Kind)
	}
	return row.Value(spec.InputColumn)
}

type countAgg struct {
	spec  AggregationSpec
	count int64
}

func (a *countAgg) Update(row Row) error {
	if a.spec.InputColumn == "" {
		a.count++
		return nil
	}
	v, err := row.Value(a.spec.InputColumn)
	if err != nil {
		return err
	}
	if v != nil {
		a.count++
	}
	return nil
}

func (a *countAgg) Result() (any, error) { return a.count, nil }

type sumAgg struct {
	spec     AggregationSpec
	seen     bool
	isFloat  bool
	intSum   int64
	floatSum float64
}

func (a *sumAgg) Update(row Row) error {
	v, err := inputValue(a.spec, row)
	if err != nil || v == nil {
		return err
	}
	n, ok := toNumber(v)
	if !ok {
		return errors.NewEvaluation("sum", fmt.Errorf("cannot sum non-numeric type: %T", v))
	}
	a.seen = true
	if n.isFloat && !a.isFloat {
		a.isFloat = true
		a.floatSum = float64(a.intSum)
	}
	if a.isFloat {
		a.floatSum += n.float()
	} else {
		a.intSum += n.i
	}
	return nil
}

func (a *sumAgg) Result() (any, error) {
	switch {
	case !a.seen:
		return nil, nil
	case a.isFloat:
		return a.floatSum, nil
	}
	return a.intSum, nil
}

type avgAgg struct {
	spec  AggregationSpec
	sum   float64
	count int64
}

func (a *avgAgg) Update(row Row) error {
	v, err := inputValue(a.spec, row)
	if err != nil || v == nil {
		return err
	}
	n, ok := toNumber(v)
	if !ok {
		return errors.NewEvaluation("avg", fmt.Errorf("cannot average non-numeric type: %T", v))
	}
	a.sum += n.float()
	a.count++
	return nil
}

func (a *avgAgg) Result() (any, error) {
	if a.count == 0 {
		return nil, nil
	}
	return a.sum / float64(a.count), nil
}

// extremumAgg implements min (want -1) and max (want 1).
type extremumAgg struct {
	spec AggregationSpec
	want int
	best any
}

func (a *extremumAgg) Update(row Row) error {
	v, err := inputValue(a.spec, row)
	if err != nil || v == nil {
		return err
	}
	if a.best == nil {
		a.best = v
		return nil
	}
	c, err := CompareValues(v, a.best)
	if err != nil {
		return errors.NewEvaluation(string(a.spec.Kind), err)
	}
	if c == a.want {
		a.best = v
	}
	return nil
}

func (a *extremumAgg) Result() (any, error) { return a.best, nil }

type countDistinctAgg struct {
	spec AggregationSpec
	seen map[any]struct{}
	// values that cannot be map keys, compared with ValuesEqual
	others []any
}

func (a *countDistinctAgg) Update(row Row) error {
	v, err := inputValue(a.spec, row)
	if err != nil || v == nil {
		return err
	}
	if key, ok := distinctKey(v); ok {
		a.seen[key] = struct{}{}
		return nil
	}
	for _, o := range a.others {
		if ValuesEqual(o, v) {
			return nil
		}
	}
	a.others = append(a.others, v)
	return nil
}

func (a *countDistinctAgg) Result() (any, error) {
	return int64(len(a.seen) + len(a.others)), nil
}

func distinctKey(v any) (any, bool) {
	if _, ok := v.(Equaler); ok {
		return nil, false
	}
	if n, ok := toNumber(v); ok {
		return canonicalNumber(n), true
	}
	switch v.(type) {
	case string, bool:
		return v, true
	}
	return nil, false
}
