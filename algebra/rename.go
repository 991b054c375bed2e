package algebra

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guileen/memquery/algebra/errors"
)

// RenameParams holds the parameters of a Rename.
type RenameParams struct {
	// RelationName replaces the input's relation name when non-empty.
	RelationName string
	// Attributes maps old column names to new ones. It must be injective.
	Attributes map[string]string
}

// Rename (ρ) relabels the relation and/or some of its columns.
type Rename struct {
	unaryOperation[RenameParams]
}

// NewRename fails immediately when the mapping references unknown columns, is
// not injective, or produces a duplicate column name.
func NewRename(input RelationalExpression, relationName string, attributes map[string]string) (*Rename, error) {
	mapping := make(map[string]string, len(attributes))
	for oldName, newName := range attributes {
		mapping[oldName] = newName
	}
	base, err := newUnaryOperation("Rename", input, RenameParams{RelationName: relationName, Attributes: mapping})
	if err != nil {
		return nil, err
	}
	r := &Rename{unaryOperation: base}

	inputSchema := input.OutputSchema()
	targets := make(map[string]string, len(mapping))
	for _, oldName := range sortedKeys(mapping) {
		newName := mapping[oldName]
		if _, err := inputSchema.requireColumn(r.op, oldName); err != nil {
			return nil, err
		}
		if newName == "" {
			return nil, errors.NewInvalidArgument(r.op, "column %q is renamed to an empty name", oldName)
		}
		if prev, dup := targets[newName]; dup {
			return nil, errors.Errorf(errors.ErrCodeSchemaConflict, r.op,
				"columns %q and %q are both renamed to %q", prev, oldName, newName)
		}
		targets[newName] = oldName
	}

	if r.schema, err = deriveSchema(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Mapping returns a copy of the old-to-new column mapping.
func (r *Rename) Mapping() map[string]string {
	out := make(map[string]string, len(r.params.Attributes))
	for k, v := range r.params.Attributes {
		out[k] = v
	}
	return out
}

func (r *Rename) outputRelationName() string {
	if r.params.RelationName != "" {
		return r.params.RelationName
	}
	return r.input.RelationName()
}

func (r *Rename) outputColumnNames() ([]string, error) {
	names := r.inputSchema().ColumnNames()
	for i, name := range names {
		if newName, ok := r.params.Attributes[name]; ok {
			names[i] = newName
		}
	}
	return names, nil
}

func (r *Rename) createColSpec(name string) (*ColSpec, error) {
	for oldName, newName := range r.params.Attributes {
		if newName == name && oldName != newName {
			upstream, err := r.inputSchema().requireColumn(r.op, oldName)
			if err != nil {
				return nil, err
			}
			return &ColSpec{Name: name, Type: upstream.Type, Source: Renamed(upstream)}, nil
		}
	}
	return r.passThrough(name)
}

func (r *Rename) Transform(input Row) (Row, error) { return r.transform(input) }

func (r *Rename) String() string {
	parts := make([]string, 0, len(r.params.Attributes)+1)
	if r.params.RelationName != "" {
		parts = append(parts, "relation->"+r.params.RelationName)
	}
	for _, oldName := range sortedKeys(r.params.Attributes) {
		parts = append(parts, oldName+"->"+r.params.Attributes[oldName])
	}
	return fmt.Sprintf("Rename[%s]", strings.Join(parts, ", "))
}

// InvertRenaming returns the inverse of an injective column mapping.
func InvertRenaming(mapping map[string]string) map[string]string {
	inv := make(map[string]string, len(mapping))
	for oldName, newName := range mapping {
		inv[newName] = oldName
	}
	return inv
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
