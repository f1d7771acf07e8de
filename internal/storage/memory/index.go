package memory

import (
	"bytes"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Index maps an owner (issuer or recipient) to the records that name it.
// One lock guards both levels so an owner's set is never dropped while a
// concurrent Add is filling it.
type Index struct {
	mu      sync.RWMutex
	byOwner map[solana.PublicKey]map[solana.PublicKey]struct{}
}

func NewIndex() *Index {
	return &Index{byOwner: make(map[solana.PublicKey]map[solana.PublicKey]struct{})}
}

// Add links id to owner. The zero key is never indexed.
func (x *Index) Add(owner, id solana.PublicKey) {
	if owner.IsZero() {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	ids, ok := x.byOwner[owner]
	if !ok {
		ids = make(map[solana.PublicKey]struct{})
		x.byOwner[owner] = ids
	}
	ids[id] = struct{}{}
}

// Remove unlinks id and forgets owners left with nothing.
func (x *Index) Remove(owner, id solana.PublicKey) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ids, ok := x.byOwner[owner]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(x.byOwner, owner)
	}
}

// Get returns owner's ids in byte order, or nil.
func (x *Index) Get(owner solana.PublicKey) []solana.PublicKey {
	x.mu.RLock()
	ids, ok := x.byOwner[owner]
	if !ok {
		x.mu.RUnlock()
		return nil
	}
	out := make([]solana.PublicKey, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	x.mu.RUnlock()

	slices.SortFunc(out, func(a, b solana.PublicKey) int { return bytes.Compare(a[:], b[:]) })
	return out
}

func (x *Index) Count(owner solana.PublicKey) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byOwner[owner])
}

// Owners returns how many owners have at least one id.
func (x *Index) Owners() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byOwner)
}
