package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
)

// Config configures the PostgreSQL connection pool.
type Config struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DefaultConfig returns pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Store holds every record table over one connection pool.
type Store struct {
	db *sqlx.DB

	TokenManagers   *TokenManagerTable
	PaymentManagers *Table[domain.PaymentManager, *domain.PaymentManager]
	MintMetadata    *Table[domain.MintMetadata, *domain.MintMetadata]
	Marketplaces    *Table[domain.Marketplace, *domain.Marketplace]
	Listings        *Table[domain.Listing, *domain.Listing]
	Ledger          *KV
}

// Open connects to PostgreSQL and, when cfg.AutoMigrate is set, applies
// pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := New(db)
	if cfg.AutoMigrate {
		if _, err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:              db,
		TokenManagers:   &TokenManagerTable{db: db},
		PaymentManagers: NewTable[domain.PaymentManager](db, storage.PaymentManagerSchema),
		MintMetadata:    NewTable[domain.MintMetadata](db, storage.MintMetadataSchema),
		Marketplaces:    NewTable[domain.Marketplace](db, storage.MarketplaceSchema),
		Listings:        NewTable[domain.Listing](db, storage.ListingSchema),
		Ledger:          &KV{db: db},
	}
}

// Migrate applies pending migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	n, err := migrate.ExecContext(ctx, s.db.DB, "postgres", Migrations, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("postgres: migrate: %w", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Table stores one record kind in the shared records table.
type Table[T any, P storage.Record[T]] struct {
	db     *sqlx.DB
	schema storage.Schema[T]
}

// NewTable creates a table for schema.Kind.
func NewTable[T any, P storage.Record[T]](db *sqlx.DB, schema storage.Schema[T]) *Table[T, P] {
	return &Table[T, P]{db: db, schema: schema}
}

const (
	recordInsert = `INSERT INTO records (kind, id, version, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, id) DO NOTHING`
	recordSelect  = `SELECT data FROM records WHERE kind = $1 AND id = $2`
	recordVersion = `SELECT version FROM records WHERE kind = $1 AND id = $2`
	recordUpdate  = `UPDATE records SET version = $1, data = $2, updated_at = now()
		WHERE kind = $3 AND id = $4 AND version = $5`
	recordDelete = `DELETE FROM records WHERE kind = $1 AND id = $2`
	recordList   = `SELECT data FROM records WHERE kind = $1`
)

func decode[T any, P storage.Record[T]](kind string, data []byte) (P, error) {
	rec := P(new(T))
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, domain.ErrStorageError.WithCause(fmt.Errorf("decode %s: %w", kind, err))
	}
	return rec, nil
}

func encode(kind string, rec any) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(fmt.Errorf("encode %s: %w", kind, err))
	}
	return data, nil
}

func storageErr(err error) error {
	return domain.ErrStorageError.WithCause(err)
}

// Get retrieves a record by identity.
func (t *Table[T, P]) Get(ctx context.Context, id solana.PublicKey) (*T, error) {
	var data []byte
	err := t.db.GetContext(ctx, &data, recordSelect, t.schema.Kind, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, t.schema.NotFound.WithDetails(id.String())
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return decode[T, P](t.schema.Kind, data)
}

// Create stores a new record. A zero version is stamped to 1.
func (t *Table[T, P]) Create(ctx context.Context, rec *T) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	clone := P(P(rec).Clone())
	if clone.GetVersion() == 0 {
		clone.SetVersion(1)
	}
	data, err := encode(t.schema.Kind, clone)
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx, recordInsert, t.schema.Kind, id.String(), clone.GetVersion(), data)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.schema.Conflict.WithDetails(id.String())
	}
	P(rec).SetVersion(clone.GetVersion())
	return nil
}

// Update replaces a record if its stored version equals expectedVersion.
func (t *Table[T, P]) Update(ctx context.Context, rec *T, expectedVersion uint64) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	clone := P(P(rec).Clone())
	clone.SetVersion(expectedVersion + 1)
	data, err := encode(t.schema.Kind, clone)
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx, recordUpdate,
		clone.GetVersion(), data, t.schema.Kind, id.String(), expectedVersion)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.missOrConflict(ctx, recordVersion, id, expectedVersion, t.schema.Kind, id.String())
	}
	P(rec).SetVersion(clone.GetVersion())
	return nil
}

func (t *Table[T, P]) missOrConflict(ctx context.Context, query string, id solana.PublicKey, expected uint64, args ...any) error {
	var actual uint64
	err := t.db.GetContext(ctx, &actual, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return t.schema.NotFound.WithDetails(id.String())
	}
	if err != nil {
		return storageErr(err)
	}
	return t.schema.VersionMismatch(id, expected, actual)
}

// Delete removes a record.
func (t *Table[T, P]) Delete(ctx context.Context, id solana.PublicKey) error {
	res, err := t.db.ExecContext(ctx, recordDelete, t.schema.Kind, id.String())
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.schema.NotFound.WithDetails(id.String())
	}
	return nil
}

// List returns every record accepted by match, ordered by identity.
func (t *Table[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	var rows [][]byte
	if err := t.db.SelectContext(ctx, &rows, recordList, t.schema.Kind); err != nil {
		return nil, storageErr(err)
	}
	out := make([]*T, 0, len(rows))
	for _, data := range rows {
		rec, err := decode[T, P](t.schema.Kind, data)
		if err != nil {
			return nil, err
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	storage.SortByKey(out, t.schema.Key)
	return out, nil
}
