package cmap

import (
	"fmt"
	"iter"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is used when a shard count is not a power of two.
const DefaultShardCount = 16

// Map is a generic map split into independently locked shards.
type Map[K comparable, V any] struct {
	shards []bucket[K, V]
	mask   uint64
	hash   func(K) uint64
}

type bucket[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New returns a Map with DefaultShardCount shards.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithShards[K, V](DefaultShardCount)
}

// NewWithShards returns a Map with n shards. n must be a power of two.
func NewWithShards[K comparable, V any](n int) *Map[K, V] {
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultShardCount
	}
	m := &Map[K, V]{
		shards: make([]bucket[K, V], n),
		mask:   uint64(n - 1),
		hash:   hasherFor[K](),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

type byteser interface{ Bytes() []byte }

// hasherFor picks the cheapest murmur3 input for K. Public keys and other
// byte-backed identities hash their raw bytes rather than a rendering.
func hasherFor[K comparable]() func(K) uint64 {
	var zero K
	switch any(zero).(type) {
	case string:
		return func(k K) uint64 { return murmur3.Sum64([]byte(any(k).(string))) }
	case byteser:
		return func(k K) uint64 { return murmur3.Sum64(any(k).(byteser).Bytes()) }
	case fmt.Stringer:
		return func(k K) uint64 { return murmur3.Sum64([]byte(any(k).(fmt.Stringer).String())) }
	}
	return func(k K) uint64 { return murmur3.Sum64([]byte(fmt.Sprint(k))) }
}

func (m *Map[K, V]) bucket(key K) *bucket[K, V] {
	return &m.shards[m.hash(key)&m.mask]
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	b := m.bucket(key)
	b.mu.RLock()
	v, ok := b.m[key]
	b.mu.RUnlock()
	return v, ok
}

func (m *Map[K, V]) Set(key K, v V) {
	b := m.bucket(key)
	b.mu.Lock()
	b.m[key] = v
	b.mu.Unlock()
}

func (m *Map[K, V]) Delete(key K) {
	b := m.bucket(key)
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
}

// GetOrSet stores v unless key is present. It returns the value now
// stored and whether it was already there.
func (m *Map[K, V]) GetOrSet(key K, v V) (V, bool) {
	b := m.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.m[key]; ok {
		return cur, true
	}
	b.m[key] = v
	return v, false
}

// SetIfAbsent reports whether v was stored.
func (m *Map[K, V]) SetIfAbsent(key K, v V) bool {
	_, loaded := m.GetOrSet(key, v)
	return !loaded
}

// Pop deletes key and returns what it held.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	b := m.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[key]
	if ok {
		delete(b.m, key)
	}
	return v, ok
}

func (m *Map[K, V]) Count() int {
	n := 0
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.RLock()
		n += len(b.m)
		b.mu.RUnlock()
	}
	return n
}

func (m *Map[K, V]) ShardCount() int { return len(m.shards) }

// All yields every entry, one shard at a time under that shard's read
// lock. The loop body must not write to m.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.shards {
			b := &m.shards[i]
			b.mu.RLock()
			for k, v := range b.m {
				if !yield(k, v) {
					b.mu.RUnlock()
					return
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Versioned values carry an optimistic lock counter.
type Versioned interface {
	GetVersion() uint64
	SetVersion(v uint64)
}

// CompareAndSwap stores next under key only if the current value's
// version is expected. next is stamped with expected+1.
func CompareAndSwap[K comparable, V Versioned](m *Map[K, V], key K, expected uint64, next V) bool {
	b := m.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.m[key]
	if !ok || cur.GetVersion() != expected {
		return false
	}
	next.SetVersion(expected + 1)
	b.m[key] = next
	return true
}
