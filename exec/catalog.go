package exec

import (
	"context"
	"sort"
	"sync"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/algebra/errors"
)

// Source resolves plan leaves to row streams.
type Source interface {
	Scan(ctx context.Context, leaf *algebra.RelationalValue) (Operator, error)
}

// SchemaLookup resolves relation names to schemas, for building plans.
type SchemaLookup interface {
	Schema(name string) (*algebra.RelationSchema, error)
}

// MemoryCatalog is a concurrency-safe set of named in-memory relations.
type MemoryCatalog struct {
	mu        sync.RWMutex
	relations map[string]*Relation
}

func NewMemoryCatalog(relations ...*Relation) *MemoryCatalog {
	c := &MemoryCatalog{relations: make(map[string]*Relation, len(relations))}
	for _, r := range relations {
		c.relations[r.Name()] = r
	}
	return c
}

// Register adds or replaces a relation under its schema name.
func (c *MemoryCatalog) Register(r *Relation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relations[r.Name()] = r
}

func (c *MemoryCatalog) Get(name string) (*Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.relations[name]
	return r, ok
}

// Drop removes a relation and reports whether it existed.
func (c *MemoryCatalog) Drop(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.relations[name]
	delete(c.relations, name)
	return ok
}

// List returns the relation names in sorted order.
func (c *MemoryCatalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.relations))
	for name := range c.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *MemoryCatalog) Schema(name string) (*algebra.RelationSchema, error) {
	r, ok := c.Get(name)
	if !ok {
		return nil, errors.NewUnknownRelation("MemoryCatalog.Schema", name)
	}
	return r.Schema(), nil
}

func (c *MemoryCatalog) Scan(_ context.Context, leaf *algebra.RelationalValue) (Operator, error) {
	r, ok := c.Get(leaf.RelationName())
	if !ok {
		return nil, errors.NewUnknownRelation("MemoryCatalog.Scan", leaf.RelationName())
	}
	return r.Scan(leaf)
}
