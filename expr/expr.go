// Package expr compiles CEL source text into algebra expressions and join
// predicates. Columns are visible both as plain identifiers (when the name is a
// valid CEL identifier) and through the row map, e.g. row["order id"].
package expr

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

// DefaultCacheSize is used when NewCompiler is given a non-positive size.
const DefaultCacheSize = 256

const (
	rowVar   = "row"
	leftVar  = "left"
	rightVar = "right"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true, "break": true,
	"const": true, "continue": true, "else": true, "for": true, "function": true,
	"if": true, "import": true, "let": true, "loop": true, "package": true,
	"namespace": true, "return": true, "var": true, "void": true, "while": true,
}

// Compiler compiles and caches CEL programs. It is safe for concurrent use.
type Compiler struct {
	cache *lru.Cache[string, cel.Program]
}

func NewCompiler(cacheSize int) (*Compiler, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cel.Program](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create program cache: %w", err)
	}
	return &Compiler{cache: cache}, nil
}

// Len reports the number of cached programs.
func (c *Compiler) Len() int { return c.cache.Len() }

// Expression is a compiled row expression. It implements algebra.Expression.
type Expression struct {
	source  string
	program cel.Program
	columns []string
}

// Compile compiles src against the columns of schema.
func (c *Compiler) Compile(schema *algebra.RelationSchema, src string) (*Expression, error) {
	columns := schema.ColumnNames()
	prg, err := c.program("row|"+strings.Join(columns, "\x00")+"|"+src, src, func() []cel.EnvOption {
		opts := []cel.EnvOption{cel.Variable(rowVar, cel.MapType(cel.StringType, cel.DynType))}
		for _, name := range columns {
			if bindable(name) {
				opts = append(opts, cel.Variable(name, cel.DynType))
			}
		}
		return opts
	})
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, program: prg, columns: columns}, nil
}

func (e *Expression) Evaluate(row algebra.Row) (any, error) {
	values := rowValues(row)
	activation := make(map[string]any, len(values)+1)
	for name, v := range values {
		if bindable(name) {
			activation[name] = v
		}
	}
	activation[rowVar] = values

	out, _, err := e.program.Eval(activation)
	if err != nil {
		return nil, errors.NewEvaluation(e.source, err)
	}
	return toNative(e.source, out)
}

func (e *Expression) String() string { return e.source }

// CompileJoinPredicate compiles src with the two input rows bound to the
// left and right maps, e.g. left.id == right.customer_id. The result must be
// a bool; null counts as no match.
func (c *Compiler) CompileJoinPredicate(left, right *algebra.RelationSchema, src string) (algebra.JoinPredicate, error) {
	key := "join|" + strings.Join(left.ColumnNames(), "\x00") + "|" + strings.Join(right.ColumnNames(), "\x00") + "|" + src
	prg, err := c.program(key, src, func() []cel.EnvOption {
		return []cel.EnvOption{
			cel.Variable(leftVar, cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable(rightVar, cel.MapType(cel.StringType, cel.DynType)),
		}
	})
	if err != nil {
		return nil, err
	}
	return func(l, r algebra.Row) (bool, error) {
		out, _, err := prg.Eval(map[string]any{leftVar: rowValues(l), rightVar: rowValues(r)})
		if err != nil {
			return false, errors.NewEvaluation(src, err)
		}
		v, err := toNative(src, out)
		if err != nil {
			return false, err
		}
		switch b := v.(type) {
		case nil:
			return false, nil
		case bool:
			return b, nil
		}
		return false, errors.NewEvaluation(src, fmt.Errorf("join predicate returned %T, want bool", v))
	}, nil
}

func (c *Compiler) program(key, src string, envOptions func() []cel.EnvOption) (cel.Program, error) {
	if prg, ok := c.cache.Get(key); ok {
		metrics.ExprCacheLookups.WithLabelValues("hit").Inc()
		return prg, nil
	}
	metrics.ExprCacheLookups.WithLabelValues("miss").Inc()

	if strings.TrimSpace(src) == "" {
		return nil, errors.NewInvalidArgument("expr.Compile", "expression is empty")
	}
	env, err := cel.NewEnv(envOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, errors.NewInvalidArgument("expr.Compile", "compile %q: %s", src, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.NewInvalidArgument("expr.Compile", "program %q: %s", src, err)
	}
	c.cache.Add(key, prg)
	logger.Debug("compiled expression", logger.String("source", src))
	return prg, nil
}

func bindable(name string) bool {
	return identifier.MatchString(name) && !reserved[name] && name != rowVar
}

// rowValues converts a row into a CEL-friendly map.
func rowValues(row algebra.Row) map[string]any {
	schema := row.Schema()
	out := make(map[string]any, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		out[schema.ColumnAt(i).Name] = toCEL(row.At(i))
	}
	return out
}

func toCEL(v any) any {
	switch x := v.(type) {
	case nil:
		return types.NullValue
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case float32:
		return float64(x)
	case uuid.UUID:
		return x.String()
	}
	return v
}

var (
	listType = reflect.TypeOf([]any{})
	mapType  = reflect.TypeOf(map[string]any{})
)

func toNative(src string, v ref.Val) (any, error) {
	if types.IsError(v) {
		return nil, errors.NewEvaluation(src, fmt.Errorf("%v", v))
	}
	switch v.Type() {
	case types.NullType:
		return nil, nil
	case types.ListType:
		out, err := v.ConvertToNative(listType)
		if err != nil {
			return nil, errors.NewEvaluation(src, err)
		}
		return out, nil
	case types.MapType:
		out, err := v.ConvertToNative(mapType)
		if err != nil {
			return nil, errors.NewEvaluation(src, err)
		}
		return out, nil
	}
	return v.Value(), nil
}
