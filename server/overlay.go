package server

import (
	"context"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
)

// overlay resolves relations from an inline catalog first, then the store.
type overlay struct {
	inline *exec.MemoryCatalog
	base   RelationStore
}

func newOverlay(base RelationStore) *overlay {
	return &overlay{inline: exec.NewMemoryCatalog(), base: base}
}

func (o *overlay) Schema(name string) (*algebra.RelationSchema, error) {
	if rel, ok := o.inline.Get(name); ok {
		return rel.Schema(), nil
	}
	return o.base.Schema(name)
}

func (o *overlay) Scan(ctx context.Context, leaf *algebra.RelationalValue) (exec.Operator, error) {
	if _, ok := o.inline.Get(leaf.RelationName()); ok {
		return o.inline.Scan(ctx, leaf)
	}
	return o.base.Scan(ctx, leaf)
}
