// Package service provides the domain services of the vault.
//
// Services orchestrate domain models over the storage and custody ports
// declared in ports.go, so every backend can be injected.
//
// This package contains:
//
//   - CustodyService: token manager issue, claim, use, extension and invalidation
//   - PaymentService: payment managers, mint royalty terms and fee quotes
//   - MarketplaceService: marketplaces and listings
//   - AuthService: API key authentication and authorization over a KeyRing
//   - RateLimiterRegistry: per-key and per-address token buckets
//   - SignatureService: caller signatures and anti-replay protection
//
// Services are safe for concurrent use. Transitions on one token manager
// are serialized by a keyed lock shared by all services built by New.
package service
