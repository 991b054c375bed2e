package exec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/types"
)

// ColumnDocument describes one column of a Document.
type ColumnDocument struct {
	Name string           `json:"name"`
	Type types.ColumnType `json:"type,omitempty"`
}

// Document is the JSON form of a relation, used by the HTTP API and the CLI.
type Document struct {
	Name    string           `json:"name"`
	Columns []ColumnDocument `json:"columns"`
	Rows    [][]any          `json:"rows"`
}

// DecodeDocument parses a JSON relation document. Integral JSON numbers
// become int64 values, other numbers float64.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode relation document: %w", err)
	}
	return doc, nil
}

// Document returns the JSON form of r.
func (r *Relation) Document() Document {
	cols := r.schema.Columns()
	doc := Document{
		Name:    r.schema.Name(),
		Columns: make([]ColumnDocument, len(cols)),
		Rows:    r.Values(),
	}
	for i, col := range cols {
		doc.Columns[i] = ColumnDocument{Name: col.Name, Type: col.Type}
	}
	return doc
}

// FromDocument builds a relation from its JSON form. Columns without a type
// get one inferred from their values; values of typed columns are converted
// from their JSON representation.
func FromDocument(doc Document) (*Relation, error) {
	rows := make([][]any, len(doc.Rows))
	for i, values := range doc.Rows {
		if len(values) != len(doc.Columns) {
			return nil, fmt.Errorf("row %d has %d values, relation %q has %d columns", i, len(values), doc.Name, len(doc.Columns))
		}
		row := make([]any, len(values))
		for j, v := range values {
			converted, err := convertJSON(normalizeJSON(v), doc.Columns[j].Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, doc.Columns[j].Name, err)
			}
			row[j] = converted
		}
		rows[i] = row
	}

	cols := make([]*algebra.ColSpec, len(doc.Columns))
	for j, c := range doc.Columns {
		if !types.IsValidColumnType(c.Type) {
			return nil, fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
		typ := c.Type
		if typ == types.ColumnTypeUnknown {
			for _, row := range rows {
				typ = types.Merge(typ, types.InferColumnType(row[j]))
			}
		}
		cols[j] = algebra.NewColSpec(c.Name, typ)
	}
	schema, err := algebra.NewRelationSchema(doc.Name, cols...)
	if err != nil {
		return nil, err
	}
	return NewRelationFromValues(schema, rows...)
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeJSON(e)
		}
		return out
	}
	return v
}

func convertJSON(v any, typ types.ColumnType) (any, error) {
	s, ok := v.(string)
	if !ok {
		if typ == types.ColumnTypeDouble {
			if i, isInt := v.(int64); isInt {
				return float64(i), nil
			}
		}
		return v, nil
	}
	switch typ {
	case types.ColumnTypeTimestamp:
		return time.Parse(time.RFC3339Nano, s)
	case types.ColumnTypeDate:
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339Nano, s)
	case types.ColumnTypeUUID:
		return uuid.Parse(s)
	case types.ColumnTypeBinary:
		return base64.StdEncoding.DecodeString(s)
	}
	return s, nil
}
