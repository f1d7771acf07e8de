package cmap

import "sync"

// Locker hands out one mutex per key. Mutexes are created on first use
// and kept for the lifetime of the Locker.
type Locker[K comparable] struct {
	locks *Map[K, *sync.Mutex]
}

// NewLocker creates a keyed locker.
func NewLocker[K comparable]() *Locker[K] {
	return &Locker[K]{locks: New[K, *sync.Mutex]()}
}

// Lock acquires the mutex for key and returns its release function.
func (l *Locker[K]) Lock(key K) func() {
	mu, _ := l.locks.GetOrSet(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// Forget drops the mutex of a key that will not be used again.
func (l *Locker[K]) Forget(key K) {
	l.locks.Delete(key)
}
