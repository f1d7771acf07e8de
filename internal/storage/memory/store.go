package memory

import (
	"context"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
)

// DefaultShardCount is the shard count used for every table.
const DefaultShardCount = 32

// TokenManagerTable is the token manager table with issuer and
// recipient indexes.
type TokenManagerTable struct {
	*Table[domain.TokenManager, *domain.TokenManager]

	issuers    *Index
	recipients *Index
}

func newTokenManagerTable(shards int) *TokenManagerTable {
	t := &TokenManagerTable{
		Table:      NewTable[domain.TokenManager](storage.TokenManagerSchema, shards),
		issuers:    NewIndex(),
		recipients: NewIndex(),
	}
	t.onChange = t.reindex
	return t
}

func (t *TokenManagerTable) reindex(old, cur *domain.TokenManager) {
	if old != nil {
		t.issuers.Remove(old.Issuer, old.ID)
		if old.Recipient != nil {
			t.recipients.Remove(*old.Recipient, old.ID)
		}
	}
	if cur != nil {
		t.issuers.Add(cur.Issuer, cur.ID)
		if cur.Recipient != nil {
			t.recipients.Add(*cur.Recipient, cur.ID)
		}
	}
}

// Find returns token managers matching filter, ordered by identity.
func (t *TokenManagerTable) Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error) {
	var out []*domain.TokenManager
	switch {
	case filter.Recipient != nil:
		out = t.getMany(t.recipients.Get(*filter.Recipient), filter.Match)
	case filter.Issuer != nil:
		out = t.getMany(t.issuers.Get(*filter.Issuer), filter.Match)
	default:
		var err error
		if out, err = t.List(ctx, filter.Match); err != nil {
			return nil, err
		}
	}
	storage.SortByKey(out, storage.TokenManagerSchema.Key)
	return storage.Limit(out, filter.Limit), nil
}

// Store holds every in-memory table.
type Store struct {
	TokenManagers   *TokenManagerTable
	PaymentManagers *Table[domain.PaymentManager, *domain.PaymentManager]
	MintMetadata    *Table[domain.MintMetadata, *domain.MintMetadata]
	Marketplaces    *Table[domain.Marketplace, *domain.Marketplace]
	Listings        *Table[domain.Listing, *domain.Listing]

	shards int
}

// Option configures the Store.
type Option func(*Store)

// WithShards sets the shard count of every table.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = n
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{shards: DefaultShardCount}
	for _, opt := range opts {
		opt(s)
	}

	s.TokenManagers = newTokenManagerTable(s.shards)
	s.PaymentManagers = NewTable[domain.PaymentManager](storage.PaymentManagerSchema, s.shards)
	s.MintMetadata = NewTable[domain.MintMetadata](storage.MintMetadataSchema, s.shards)
	s.Marketplaces = NewTable[domain.Marketplace](storage.MarketplaceSchema, s.shards)
	s.Listings = NewTable[domain.Listing](storage.ListingSchema, s.shards)
	return s
}

// Close is a no-op; it lets the store stand in wherever a closable
// backend is expected.
func (s *Store) Close() error { return nil }
