package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yndnr/tokvault-go/internal/storage"
)

const (
	kvGet    = `SELECT value FROM ledger_entries WHERE key = $1`
	kvUpsert = `INSERT INTO ledger_entries (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	kvDelete = `DELETE FROM ledger_entries WHERE key = $1`
	kvScan   = `SELECT key, value FROM ledger_entries
		WHERE substring(key FROM 1 FOR $2) = $1 ORDER BY key`
	kvSize = `SELECT COALESCE(pg_total_relation_size('ledger_entries'), 0)`
)

// KV implements storage.KVEngine over the ledger_entries table so the
// custody ledger can share the PostgreSQL backend.
type KV struct {
	db *sqlx.DB
}

var _ storage.KVEngine = (*KV)(nil)

type kvRow struct {
	Key   []byte `db:"key"`
	Value []byte `db:"value"`
}

// Get retrieves a value by key.
func (k *KV) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := k.db.GetContext(ctx, &value, kvGet, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (k *KV) Set(ctx context.Context, key, value []byte) error {
	_, err := k.db.ExecContext(ctx, kvUpsert, key, value)
	return err
}

// Delete removes a key.
func (k *KV) Delete(ctx context.Context, key []byte) error {
	_, err := k.db.ExecContext(ctx, kvDelete, key)
	return err
}

// Scan iterates over keys with a given prefix in key order.
func (k *KV) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	rows, err := k.db.QueryxContext(ctx, kvScan, prefix, len(prefix))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r kvRow
		if err := rows.StructScan(&r); err != nil {
			return err
		}
		if !fn(r.Key, r.Value) {
			break
		}
	}
	return rows.Err()
}

// WriteBatch applies every write in one transaction.
func (k *KV) WriteBatch(ctx context.Context, batch *storage.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	tx, err := k.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, op := range batch.Ops() {
		if op.Value == nil {
			_, err = tx.ExecContext(ctx, kvDelete, op.Key)
		} else {
			_, err = tx.ExecContext(ctx, kvUpsert, op.Key, op.Value)
		}
		if err != nil {
			return fmt.Errorf("batch %q: %w", op.Key, err)
		}
	}
	return tx.Commit()
}

// GC is a no-op; PostgreSQL reclaims space through autovacuum.
func (k *KV) GC(context.Context) (uint64, error) { return 0, nil }

// Stats reports the on-disk size of the ledger table.
func (k *KV) Stats(ctx context.Context) (*storage.KVStats, error) {
	var size int64
	if err := k.db.GetContext(ctx, &size, kvSize); err != nil {
		return nil, err
	}
	return &storage.KVStats{TotalSize: uint64(size)}, nil
}

// Close is a no-op; the pool is owned by Store.
func (k *KV) Close() error { return nil }
