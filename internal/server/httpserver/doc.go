// Package httpserver provides the HTTP/HTTPS server of the custody API.
//
// Routing uses chi:
//
//   - Token managers: /v1/token-managers, /v1/token-managers/{id}/...
//   - Fees, payment managers, mints: /v1/fees/quote, /v1/payment-managers, /v1/mints
//   - Marketplaces and listings: /v1/marketplaces, /v1/listings
//   - Ledger: /v1/ledger/{mint}/{owner}, /admin/v1/ledger/*
//   - Probes and metrics: /health, /ready, /metrics
//
// Requests authenticate with an API key (X-API-Key-ID and X-API-Key, or
// Authorization: Bearer id:secret). Mutating calls name their acting
// identity in X-Caller and, when signatures are required, sign the
// request with it (X-Signature, X-Timestamp, X-Nonce).
package httpserver
