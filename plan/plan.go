// Package plan reads query plans written as JSON documents and builds them
// into algebra trees.
//
// A plan is a tree of nodes. Every node has an "op"; unary nodes take an
// "input", joins take "left" and "right":
//
//	{"op": "select", "predicate": "amount > 10",
//	 "input": {"op": "scan", "relation": "orders"}}
//
// Expressions and predicates are CEL source text, compiled by package expr.
package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Ops understood by Builder.
const (
	OpScan        = "scan"
	OpProject     = "project"
	OpExtend      = "extend"
	OpSelect      = "select"
	OpRename      = "rename"
	OpJoin        = "join"
	OpCrossJoin   = "cross_join"
	OpEquiJoin    = "equi_join"
	OpNaturalJoin = "natural_join"
	OpAggregate   = "aggregate"
)

// Node is one operation of a plan document.
type Node struct {
	Op       string `json:"op"`
	Relation string `json:"relation,omitempty"`

	Input *Node `json:"input,omitempty"`
	Left  *Node `json:"left,omitempty"`
	Right *Node `json:"right,omitempty"`

	Columns   []string          `json:"columns,omitempty"`
	Computed  []ComputedColumn  `json:"computed,omitempty"`
	Predicate string            `json:"predicate,omitempty"`
	Mapping   map[string]string `json:"mapping,omitempty"`

	Type string      `json:"type,omitempty"`
	On   []Condition `json:"on,omitempty"`

	GroupBy      []string      `json:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
}

// ComputedColumn is an extend entry. An empty Expr passes the like-named
// input column through; the name "*" keeps every input column.
type ComputedColumn struct {
	Name string `json:"name"`
	Expr string `json:"expr,omitempty"`
}

type Condition struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Aggregation struct {
	Kind   string `json:"kind"`
	Column string `json:"column,omitempty"`
	As     string `json:"as"`
}

// ValidationError lists the schema violations of a plan document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid plan: " + strings.Join(e.Problems, "; ")
}

//go:embed schema.json
var schemaJSON []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Validate checks data against the plan document schema.
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load plan schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("plan validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Problems = append(verr.Problems, desc.String())
	}
	return verr
}

// Decode validates and parses a plan document.
func Decode(data []byte) (*Node, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var n Node
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &n, nil
}

// Encode renders n as an indented plan document.
func Encode(n *Node) ([]byte, error) {
	return json.MarshalIndent(n, "", "  ")
}
