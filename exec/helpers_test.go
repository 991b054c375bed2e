package exec

import (
	"testing"

	"github.com/guileen/memquery/algebra"
	"github.com/stretchr/testify/require"
)

func mustRelation(t *testing.T, name string, columns []string, rows ...[]any) *Relation {
	t.Helper()
	schema, err := algebra.NewBaseSchema(name, columns...)
	require.NoError(t, err)
	rel, err := NewRelationFromValues(schema, rows...)
	require.NoError(t, err)
	return rel
}

// key is a value with its own equality, which codec cannot hash.
type key struct {
	id  int
	tag string
}

func (k *key) Equal(other any) bool {
	o, ok := other.(*key)
	return ok && o.id == k.id
}
