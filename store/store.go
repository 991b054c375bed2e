// Package store keeps relations in a pebble database. A Store is an
// exec.Source, so plans can run directly against stored relations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/guileen/memquery/algebra"
	qerrors "github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/codec"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/metrics"
)

var ErrClosed = errors.New("store is closed")

type Store struct {
	db     *pebble.DB
	opts   Options
	mu     sync.RWMutex
	closed bool

	// pendingWrites counts unsynced commits since the last background flush.
	pendingWrites atomic.Int64
	flushTicker   *time.Ticker
	flushDone     chan struct{}
}

// Open opens or creates the store described by opts.
func Open(opts Options) (*Store, error) {
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 8 << 20
	}
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	compression := pebble.NoCompression
	if opts.CompressionEnabled {
		compression = pebble.SnappyCompression
	}
	level := pebble.LevelOptions{BlockSize: opts.BlockSize, Compression: compression}
	if opts.EnableBloomFilter {
		level.FilterPolicy = bloom.FilterPolicy(opts.BloomFilterBitsPerKey)
		level.FilterType = pebble.TableFilter
	}

	popts := &pebble.Options{
		Cache:                 cache,
		MaxOpenFiles:          opts.MaxOpenFiles,
		MemTableSize:          opts.MemTableSize,
		L0CompactionThreshold: opts.L0CompactionThreshold,
		L0StopWritesThreshold: opts.L0StopWritesThreshold,
		Levels:                []pebble.LevelOptions{level},
	}
	if opts.Path == "" {
		popts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(opts.Path, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	s := &Store{db: db, opts: opts, flushDone: make(chan struct{})}
	if !opts.Sync && opts.FlushInterval > 0 {
		s.flushTicker = time.NewTicker(opts.FlushInterval)
		go s.backgroundFlush()
	}
	logger.Info("relation store opened",
		logger.Component("store"),
		logger.String("path", opts.Path),
		logger.Bool("sync", opts.Sync),
	)
	return s, nil
}

func (s *Store) writeOptions() *pebble.WriteOptions {
	if s.opts.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func record(op string, err error) {
	metrics.StoreOperations.WithLabelValues(op, metrics.Status(err)).Inc()
}

// Save stores rel under its relation name, replacing any relation of that
// name in one atomic batch.
func (s *Store) Save(ctx context.Context, rel *exec.Relation) (err error) {
	defer func() { record("save", err) }()

	batch := s.db.NewBatch()
	defer batch.Close()

	name := rel.Name()
	lower, upper := rowBounds(name)
	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return fmt.Errorf("clear relation %q: %w", name, err)
	}
	for i, row := range rel.Rows() {
		if i&1023 == 1023 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		value, err := codec.EncodeRow(row.Values())
		if err != nil {
			return fmt.Errorf("encode row %d of %q: %w", i, name, err)
		}
		if err := batch.Set(rowKey(lower, uint64(i)), value, nil); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i, name, err)
		}
	}
	data, err := json.Marshal(newMeta(rel.Schema(), rel.Len()))
	if err != nil {
		return fmt.Errorf("encode relation metadata: %w", err)
	}
	if err := batch.Set(metaKey(name), data, nil); err != nil {
		return fmt.Errorf("write relation metadata: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := batch.Commit(s.writeOptions()); err != nil {
		return fmt.Errorf("commit relation %q: %w", name, err)
	}
	s.pendingWrites.Add(1)
	logger.DebugContext(ctx, "relation saved",
		logger.Component("store"),
		logger.String("relation", name),
		logger.Int("rows", rel.Len()),
	)
	return nil
}

// getMeta reads the metadata of name from r.
func getMeta(r pebble.Reader, name string) (meta, error) {
	data, closer, err := r.Get(metaKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return meta{}, qerrors.NewUnknownRelation("Store", name)
	}
	if err != nil {
		return meta{}, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return decodeMeta(data)
}

// Schema returns the stored schema of name.
func (s *Store) Schema(name string) (*algebra.RelationSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	m, err := getMeta(s.db, name)
	if err != nil {
		return nil, err
	}
	return m.schema()
}

// Load reads a whole relation into memory.
func (s *Store) Load(ctx context.Context, name string) (rel *exec.Relation, err error) {
	defer func() { record("load", err) }()

	schema, err := s.Schema(name)
	if err != nil {
		return nil, err
	}
	op, err := s.Scan(ctx, algebra.NewRelationalValue(schema))
	if err != nil {
		return nil, err
	}
	defer op.Close()
	if err := op.Open(ctx); err != nil {
		return nil, err
	}

	rel = exec.NewRelation(schema)
	for {
		row, err := op.Next()
		if err == exec.EOF {
			return rel, nil
		}
		if err != nil {
			return nil, err
		}
		if err := rel.Append(row); err != nil {
			return nil, err
		}
	}
}

// List returns the stored relation names in key order.
func (s *Store) List(ctx context.Context) (names []string, err error) {
	defer func() { record("list", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	lower, upper := metaBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()
	names = []string{}
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[1:]))
	}
	return names, iter.Error()
}

// Delete removes name and reports whether it existed.
func (s *Store) Delete(ctx context.Context, name string) (found bool, err error) {
	defer func() { record("delete", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, err := getMeta(s.db, name); err != nil {
		if qerrors.IsUnknownRelation(err) {
			return false, nil
		}
		return false, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	lower, upper := rowBounds(name)
	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return false, err
	}
	if err := batch.Delete(metaKey(name), nil); err != nil {
		return false, err
	}
	if err := batch.Commit(s.writeOptions()); err != nil {
		return false, fmt.Errorf("delete relation %q: %w", name, err)
	}
	s.pendingWrites.Add(1)
	logger.DebugContext(ctx, "relation deleted", logger.Component("store"), logger.String("relation", name))
	return true, nil
}

// Scan returns an operator streaming the rows of leaf's relation from a
// consistent snapshot.
func (s *Store) Scan(ctx context.Context, leaf *algebra.RelationalValue) (exec.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	snap := s.db.NewSnapshot()
	m, err := getMeta(snap, leaf.RelationName())
	if err != nil {
		snap.Close()
		return nil, err
	}
	stored, err := m.schema()
	if err != nil {
		snap.Close()
		return nil, err
	}
	schema := leaf.OutputSchema()
	if !schema.SameShape(stored) {
		snap.Close()
		return nil, qerrors.NewInvalidArgument("Store.Scan", "stored relation %s does not match plan leaf %s", stored, schema)
	}
	return &scanOperator{snap: snap, schema: schema, name: m.Name}, nil
}

// Close flushes and closes the database. It is safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.flushTicker != nil {
		s.flushTicker.Stop()
		close(s.flushDone)
	}
	return s.db.Close()
}

func (s *Store) backgroundFlush() {
	for {
		select {
		case <-s.flushTicker.C:
			// Only flush when something was written since the last tick.
			if s.pendingWrites.Swap(0) == 0 {
				continue
			}
			s.mu.RLock()
			if !s.closed {
				if err := s.db.Flush(); err != nil {
					logger.Warn("store flush failed", logger.Component("store"), logger.ErrorField(err))
				}
			}
			s.mu.RUnlock()
		case <-s.flushDone:
			return
		}
	}
}
