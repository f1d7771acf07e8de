// Package domain defines the core domain models for tokvault.
//
// Domain models are pure value objects and entities without any
// IO dependencies. This package contains:
//
//   - TokenManager: the custody record and its state machine
//   - Policy: the closed set of invalidator variants (time, use, custom, claim approver)
//   - CustodyOp: the custody primitive instructions a transition produces
//   - PaymentManager, MintMetadata, Marketplace, Listing: payment and sale records
//   - Errors: domain error catalogue
//
// Records carry a version for optimistic locking and derive their
// addresses deterministically from the asset identity or a name.
package domain
