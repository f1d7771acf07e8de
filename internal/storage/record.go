package storage

import (
	"bytes"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// Record is the constraint every stored entity satisfies: a pointer to a
// versioned struct that can deep copy itself.
type Record[T any] interface {
	*T
	GetVersion() uint64
	SetVersion(v uint64)
	Clone() *T
}

// Schema describes how a record type is stored.
type Schema[T any] struct {
	// Kind names the record type; used as key prefix and table discriminator.
	Kind string

	// Key returns the record's primary identity.
	Key func(*T) solana.PublicKey

	// Validate, when set, runs before every write.
	Validate func(*T) error

	NotFound *domain.DomainError
	Conflict *domain.DomainError
}

// Schemas for every record kind.
var (
	TokenManagerSchema = Schema[domain.TokenManager]{
		Kind:     "token_manager",
		Key:      func(tm *domain.TokenManager) solana.PublicKey { return tm.ID },
		Validate: func(tm *domain.TokenManager) error { return tm.Validate() },
		NotFound: domain.ErrTokenManagerNotFound,
		Conflict: domain.ErrTokenManagerConflict,
	}
	PaymentManagerSchema = Schema[domain.PaymentManager]{
		Kind:     "payment_manager",
		Key:      func(pm *domain.PaymentManager) solana.PublicKey { return pm.ID },
		NotFound: domain.ErrPaymentManagerNotFound,
		Conflict: domain.ErrPaymentManagerConflict,
	}
	MintMetadataSchema = Schema[domain.MintMetadata]{
		Kind:     "mint_metadata",
		Key:      func(md *domain.MintMetadata) solana.PublicKey { return md.Mint },
		Validate: func(md *domain.MintMetadata) error { return md.Validate() },
		NotFound: domain.ErrMintNotRegistered,
		Conflict: domain.ErrVersionConflict,
	}
	MarketplaceSchema = Schema[domain.Marketplace]{
		Kind:     "marketplace",
		Key:      func(m *domain.Marketplace) solana.PublicKey { return m.ID },
		NotFound: domain.ErrMarketplaceNotFound,
		Conflict: domain.ErrMarketplaceConflict,
	}
	ListingSchema = Schema[domain.Listing]{
		Kind:     "listing",
		Key:      func(l *domain.Listing) solana.PublicKey { return l.ID },
		NotFound: domain.ErrListingNotFound,
		Conflict: domain.ErrListingConflict,
	}
)

// Check runs the schema validation, if any.
func (s Schema[T]) Check(rec *T) error {
	if s.Validate == nil {
		return nil
	}
	return s.Validate(rec)
}

// VersionMismatch builds the error for a failed optimistic write.
func (s Schema[T]) VersionMismatch(id solana.PublicKey, expected, actual uint64) error {
	return domain.ErrVersionConflict.WithDetailsf("%s %s: expected version %d, found %d", s.Kind, id, expected, actual)
}

// SortByKey orders records by identity bytes so listings are stable.
func SortByKey[T any](recs []*T, key func(*T) solana.PublicKey) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := key(recs[i]), key(recs[j])
		return bytes.Compare(a[:], b[:]) < 0
	})
}

// Limit truncates recs to n when n is positive.
func Limit[T any](recs []*T, n int) []*T {
	if n > 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
