package store

import "time"

// Options configures the pebble database behind a Store.
type Options struct {
	// Path is the database directory. An empty path keeps everything in an
	// in-memory filesystem.
	Path string
	// Sync makes every write durable before it returns.
	Sync                  bool
	CacheSize             int64
	MemTableSize          uint64
	MaxOpenFiles          int
	BlockSize             int
	L0CompactionThreshold int
	L0StopWritesThreshold int
	CompressionEnabled    bool
	EnableBloomFilter     bool
	BloomFilterBitsPerKey int
	// FlushInterval is how often buffered writes are flushed when Sync is off.
	// Zero disables background flushing.
	FlushInterval time.Duration
}

// DefaultOptions returns options for a store at path.
func DefaultOptions(path string) Options {
	return Options{
		Path:                  path,
		Sync:                  true,
		CacheSize:             64 << 20,
		MemTableSize:          16 << 20,
		MaxOpenFiles:          1000,
		BlockSize:             32 << 10,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
		CompressionEnabled:    true,
		EnableBloomFilter:     true,
		BloomFilterBitsPerKey: 10,
		FlushInterval:         time.Second,
	}
}

// TestOptions returns small in-memory options for tests.
func TestOptions() Options {
	return Options{
		CacheSize:             4 << 20,
		MemTableSize:          1 << 20,
		MaxOpenFiles:          100,
		BlockSize:             4 << 10,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 10,
		EnableBloomFilter:     true,
		BloomFilterBitsPerKey: 5,
	}
}
