package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Namespace is the base key all record addresses are derived under.
var Namespace = solana.MustPublicKeyFromBase58("Gi2cAMg6feY67xz9cvMBZCNF8mxJfApf1FQnvZaZtsCB")

// Address seeds.
const (
	SeedTokenManager    = "token-manager"
	SeedTimeInvalidator = "time-invalidator"
	SeedUseInvalidator  = "use-invalidator"
	SeedPaymentManager  = "payment-manager"
	SeedMarketplace     = "marketplace"
	SeedListing         = "listing"
)

// MaxNameLength bounds names used as address seeds.
const MaxNameLength = 32

// TokenManagerAddress derives the token manager address for a mint.
func TokenManagerAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(SeedTokenManager), mint.Bytes())
}

// TimeInvalidatorAddress derives the reference of a manager's time policy.
func TimeInvalidatorAddress(tokenManager solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := derive([]byte(SeedTimeInvalidator), tokenManager.Bytes())
	return addr, err
}

// UseInvalidatorAddress derives the reference of a manager's use policy.
func UseInvalidatorAddress(tokenManager solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := derive([]byte(SeedUseInvalidator), tokenManager.Bytes())
	return addr, err
}

// PaymentManagerAddress derives a payment manager address from its name.
func PaymentManagerAddress(name string) (solana.PublicKey, uint8, error) {
	if err := ValidateName(name); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return derive([]byte(SeedPaymentManager), []byte(name))
}

// MarketplaceAddress derives a marketplace address from its name.
func MarketplaceAddress(name string) (solana.PublicKey, uint8, error) {
	if err := ValidateName(name); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return derive([]byte(SeedMarketplace), []byte(name))
}

// ListingAddress derives the listing address for a token manager.
// A token manager can be listed at most once.
func ListingAddress(tokenManager solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(SeedListing), tokenManager.Bytes())
}

// ValidateName checks a human-readable record name.
func ValidateName(name string) error {
	if name == "" {
		return ErrMissingArgument.WithDetails("name is required")
	}
	if len(name) > MaxNameLength {
		return ErrInvalidArgument.WithDetailsf("name longer than %d bytes", MaxNameLength)
	}
	return nil
}

// ParseIdentity parses a base58 identity.
func ParseIdentity(field, s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, ErrMissingArgument.WithDetails(field + " is required")
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, ErrInvalidArgument.WithDetails(fmt.Sprintf("%s: %v", field, err))
	}
	return pk, nil
}

func derive(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, Namespace)
	if err != nil {
		return solana.PublicKey{}, 0, ErrInvalidArgument.WithCause(err)
	}
	return addr, bump, nil
}

// dedupe returns keys in first-seen order without repeats or zero keys.
func dedupe(keys []solana.PublicKey) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(keys))
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
