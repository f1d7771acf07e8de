package service

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// APIKeyRepository looks up API keys.
type APIKeyRepository interface {
	Get(ctx context.Context, keyID string) (*domain.APIKey, error)
}

// KeyRing serves the API keys declared in configuration. Replace swaps the
// set atomically on reload; readers never block.
type KeyRing struct {
	keys atomic.Pointer[map[string]*domain.APIKey]
}

func NewKeyRing(keys ...*domain.APIKey) *KeyRing {
	r := &KeyRing{}
	r.Replace(keys)
	return r
}

// Get returns a copy of the key so callers cannot edit the ring.
func (r *KeyRing) Get(_ context.Context, keyID string) (*domain.APIKey, error) {
	k, ok := (*r.keys.Load())[keyID]
	if !ok {
		return nil, domain.ErrAPIKeyInvalid.WithDetails("unknown key id")
	}
	c := *k
	return &c, nil
}

func (r *KeyRing) Replace(keys []*domain.APIKey) {
	m := make(map[string]*domain.APIKey, len(keys))
	for _, k := range keys {
		m[k.KeyID] = k
	}
	r.keys.Store(&m)
}

func (r *KeyRing) Len() int {
	return len(*r.keys.Load())
}
