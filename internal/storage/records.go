package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// KVTable stores one record kind in a KVEngine as JSON under
// "<kind>/<id>".
type KVTable[T any, P Record[T]] struct {
	engine KVEngine
	schema Schema[T]

	// mu serializes read-modify-write cycles.
	mu sync.Mutex
}

// NewKVTable creates a table over engine.
func NewKVTable[T any, P Record[T]](engine KVEngine, schema Schema[T]) *KVTable[T, P] {
	return &KVTable[T, P]{engine: engine, schema: schema}
}

func (t *KVTable[T, P]) prefix() []byte {
	return []byte(t.schema.Kind + "/")
}

func (t *KVTable[T, P]) key(id solana.PublicKey) []byte {
	return append(t.prefix(), id[:]...)
}

func (t *KVTable[T, P]) load(ctx context.Context, id solana.PublicKey) (P, error) {
	data, err := t.engine.Get(ctx, t.key(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, t.schema.NotFound.WithDetails(id.String())
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return t.decode(data)
}

func (t *KVTable[T, P]) decode(data []byte) (P, error) {
	rec := P(new(T))
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, domain.ErrStorageError.WithCause(fmt.Errorf("decode %s: %w", t.schema.Kind, err))
	}
	return rec, nil
}

func (t *KVTable[T, P]) store(ctx context.Context, rec P) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return domain.ErrStorageError.WithCause(fmt.Errorf("encode %s: %w", t.schema.Kind, err))
	}
	if err := t.engine.Set(ctx, t.key(t.schema.Key(rec)), data); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// Get retrieves a record by identity.
func (t *KVTable[T, P]) Get(ctx context.Context, id solana.PublicKey) (*T, error) {
	return t.load(ctx, id)
}

// Create stores a new record. A zero version is stamped to 1.
func (t *KVTable[T, P]) Create(ctx context.Context, rec *T) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.engine.Get(ctx, t.key(id)); err == nil {
		return t.schema.Conflict.WithDetails(id.String())
	} else if !errors.Is(err, ErrKeyNotFound) {
		return domain.ErrStorageError.WithCause(err)
	}

	clone := P(P(rec).Clone())
	if clone.GetVersion() == 0 {
		clone.SetVersion(1)
	}
	if err := t.store(ctx, clone); err != nil {
		return err
	}
	P(rec).SetVersion(clone.GetVersion())
	return nil
}

// Update replaces a record if its stored version equals expectedVersion.
func (t *KVTable[T, P]) Update(ctx context.Context, rec *T, expectedVersion uint64) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.load(ctx, id)
	if err != nil {
		return err
	}
	if existing.GetVersion() != expectedVersion {
		return t.schema.VersionMismatch(id, expectedVersion, existing.GetVersion())
	}

	clone := P(P(rec).Clone())
	clone.SetVersion(expectedVersion + 1)
	if err := t.store(ctx, clone); err != nil {
		return err
	}
	P(rec).SetVersion(clone.GetVersion())
	return nil
}

// Delete removes a record.
func (t *KVTable[T, P]) Delete(ctx context.Context, id solana.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.load(ctx, id); err != nil {
		return err
	}
	if err := t.engine.Delete(ctx, t.key(id)); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// List returns every record accepted by match, ordered by identity.
func (t *KVTable[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	var (
		out     []*T
		scanErr error
	)
	err := t.engine.Scan(ctx, t.prefix(), func(_, value []byte) bool {
		rec, err := t.decode(value)
		if err != nil {
			scanErr = err
			return false
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
		return true
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	// Keys are raw identity bytes, so scan order is already identity order.
	return out, nil
}

// KVTokenManagerTable adds filtered lookup to the token manager table.
type KVTokenManagerTable struct {
	*KVTable[domain.TokenManager, *domain.TokenManager]
}

// Find returns token managers matching filter, ordered by identity.
func (t *KVTokenManagerTable) Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error) {
	out, err := t.List(ctx, filter.Match)
	if err != nil {
		return nil, err
	}
	return Limit(out, filter.Limit), nil
}

// KVStore holds every record table over a single engine.
type KVStore struct {
	TokenManagers   *KVTokenManagerTable
	PaymentManagers *KVTable[domain.PaymentManager, *domain.PaymentManager]
	MintMetadata    *KVTable[domain.MintMetadata, *domain.MintMetadata]
	Marketplaces    *KVTable[domain.Marketplace, *domain.Marketplace]
	Listings        *KVTable[domain.Listing, *domain.Listing]

	engine KVEngine
}

// NewKVStore creates the record tables over engine.
func NewKVStore(engine KVEngine) *KVStore {
	return &KVStore{
		TokenManagers: &KVTokenManagerTable{
			KVTable: NewKVTable[domain.TokenManager](engine, TokenManagerSchema),
		},
		PaymentManagers: NewKVTable[domain.PaymentManager](engine, PaymentManagerSchema),
		MintMetadata:    NewKVTable[domain.MintMetadata](engine, MintMetadataSchema),
		Marketplaces:    NewKVTable[domain.Marketplace](engine, MarketplaceSchema),
		Listings:        NewKVTable[domain.Listing](engine, ListingSchema),
		engine:          engine,
	}
}

// Engine returns the underlying engine.
func (s *KVStore) Engine() KVEngine { return s.engine }

// Close closes the underlying engine.
func (s *KVStore) Close() error { return s.engine.Close() }
