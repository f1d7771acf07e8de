// Package ledger is the reference custody primitive: an account ledger
// keyed by (mint, owner) that executes batches of custody instructions
// atomically.
//
// A batch either applies completely or leaves every account untouched.
// When a KV engine is attached, the accounts a batch touched are written
// in one storage batch before the in-memory state is committed, so the
// persisted ledger never runs ahead of or behind what callers observed.
package ledger
