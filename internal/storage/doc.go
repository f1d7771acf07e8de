// Package storage persists tokvault records.
//
// Three backends implement the repositories the service layer consumes:
//
//   - memory: sharded concurrent maps (package memory)
//   - kv: JSON records in an embedded KVEngine (Badger), this package
//   - postgres: JSONB rows with indexed token manager columns (package postgres)
//
// All backends clone on read and write, and enforce optimistic locking
// through the record version.
package storage
