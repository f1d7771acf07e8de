package storage

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// KVEngine is the byte-level store under the record tables and the
// custody ledger. Implementations are safe for concurrent use.
type KVEngine interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	// Scan visits keys under prefix in byte order until fn returns false.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error
	// WriteBatch applies every op or none.
	WriteBatch(ctx context.Context, batch *Batch) error
	// GC reclaims space where the engine needs it and returns an estimate
	// of the bytes freed.
	GC(ctx context.Context) (uint64, error)
	Stats(ctx context.Context) (*KVStats, error)
	Close() error
}

// Batch collects writes for KVEngine.WriteBatch.
type Batch struct {
	ops []BatchOp
}

// BatchOp is one write in a batch. A nil Value deletes the key.
type BatchOp struct {
	Key   []byte
	Value []byte
}

// Set queues a write.
func (b *Batch) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	b.ops = append(b.ops, BatchOp{Key: key, Value: value})
}

// Delete queues a deletion.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, BatchOp{Key: key})
}

// Ops returns the queued writes in order.
func (b *Batch) Ops() []BatchOp { return b.ops }

// Len returns the number of queued writes.
func (b *Batch) Len() int { return len(b.ops) }

// KVStats reports engine sizes in bytes.
type KVStats struct {
	TotalSize        uint64
	LSMSize          uint64
	ValueLogSize     uint64
	LastGCTime       int64 // unix millis, 0 before the first GC
	GCBytesReclaimed uint64
}

// KVConfig selects where an embedded engine keeps its data.
type KVConfig struct {
	Dir string
	// InMemory ignores Dir and loses everything on Close.
	InMemory bool
	Badger   BadgerConfig
}

// BadgerConfig tunes the Badger engine. Zero sizes keep Badger's own
// defaults.
type BadgerConfig struct {
	GCInterval       string  `koanf:"gc_interval"`  // e.g. "10m"
	GCThreshold      float64 `koanf:"gc_threshold"` // discard ratio, 0..1
	CacheSize        int64   `koanf:"cache_size"`
	ValueLogFileSize int64   `koanf:"value_log_file_size"`
	// SyncWrites fsyncs every commit. Custody records must survive a crash.
	SyncWrites bool `koanf:"sync_writes"`
}

func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{Dir: dir, Badger: DefaultBadgerConfig()}
}

func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		ValueLogFileSize: 256 << 20,
		SyncWrites:       true,
	}
}
