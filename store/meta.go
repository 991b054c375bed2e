package store

import (
	"encoding/json"
	"fmt"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
)

// meta is the stored description of a relation.
type meta struct {
	Name    string                `json:"name"`
	Columns []exec.ColumnDocument `json:"columns"`
	Rows    uint64                `json:"rows"`
}

func newMeta(schema *algebra.RelationSchema, rows int) meta {
	cols := schema.Columns()
	m := meta{Name: schema.Name(), Columns: make([]exec.ColumnDocument, len(cols)), Rows: uint64(rows)}
	for i, col := range cols {
		m.Columns[i] = exec.ColumnDocument{Name: col.Name, Type: col.Type}
	}
	return m
}

func decodeMeta(data []byte) (meta, error) {
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return meta{}, fmt.Errorf("decode relation metadata: %w", err)
	}
	return m, nil
}

func (m meta) schema() (*algebra.RelationSchema, error) {
	cols := make([]*algebra.ColSpec, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = algebra.NewColSpec(c.Name, c.Type)
	}
	return algebra.NewRelationSchema(m.Name, cols...)
}
