package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
)

const (
	tmInsert = `INSERT INTO token_managers (id, mint, issuer, recipient, state, version, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING`
	tmSelect  = `SELECT data FROM token_managers WHERE id = $1`
	tmVersion = `SELECT version FROM token_managers WHERE id = $1`
	tmUpdate  = `UPDATE token_managers SET recipient = $1, state = $2, version = $3, data = $4, updated_at = now()
		WHERE id = $5 AND version = $6`
	tmDelete = `DELETE FROM token_managers WHERE id = $1`
	tmFind   = `SELECT data FROM token_managers`
)

var tmSchema = storage.TokenManagerSchema

// TokenManagerTable stores token managers with indexed lookup columns.
type TokenManagerTable struct {
	db *sqlx.DB
}

func recipientColumn(tm *domain.TokenManager) sql.NullString {
	if tm.Recipient == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tm.Recipient.String(), Valid: true}
}

// Get retrieves a token manager by identity.
func (t *TokenManagerTable) Get(ctx context.Context, id solana.PublicKey) (*domain.TokenManager, error) {
	var data []byte
	err := t.db.GetContext(ctx, &data, tmSelect, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tmSchema.NotFound.WithDetails(id.String())
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return decode[domain.TokenManager](tmSchema.Kind, data)
}

// Create stores a new token manager.
func (t *TokenManagerTable) Create(ctx context.Context, tm *domain.TokenManager) error {
	if err := tm.Validate(); err != nil {
		return err
	}
	clone := tm.Clone()
	if clone.Version == 0 {
		clone.Version = 1
	}
	data, err := encode(tmSchema.Kind, clone)
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx, tmInsert,
		clone.ID.String(), clone.Mint.String(), clone.Issuer.String(), recipientColumn(clone),
		clone.State.String(), clone.Version, data)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tmSchema.Conflict.WithDetails(tm.ID.String())
	}
	tm.Version = clone.Version
	return nil
}

// Update replaces a token manager if its stored version equals expectedVersion.
func (t *TokenManagerTable) Update(ctx context.Context, tm *domain.TokenManager, expectedVersion uint64) error {
	if err := tm.Validate(); err != nil {
		return err
	}
	clone := tm.Clone()
	clone.Version = expectedVersion + 1
	data, err := encode(tmSchema.Kind, clone)
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx, tmUpdate,
		recipientColumn(clone), clone.State.String(), clone.Version, data,
		clone.ID.String(), expectedVersion)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var actual uint64
		err := t.db.GetContext(ctx, &actual, tmVersion, tm.ID.String())
		if errors.Is(err, sql.ErrNoRows) {
			return tmSchema.NotFound.WithDetails(tm.ID.String())
		}
		if err != nil {
			return storageErr(err)
		}
		return tmSchema.VersionMismatch(tm.ID, expectedVersion, actual)
	}
	tm.Version = clone.Version
	return nil
}

// Delete removes a token manager.
func (t *TokenManagerTable) Delete(ctx context.Context, id solana.PublicKey) error {
	res, err := t.db.ExecContext(ctx, tmDelete, id.String())
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tmSchema.NotFound.WithDetails(id.String())
	}
	return nil
}

// List returns every token manager accepted by match.
func (t *TokenManagerTable) List(ctx context.Context, match func(*domain.TokenManager) bool) ([]*domain.TokenManager, error) {
	return t.query(ctx, tmFind, nil, match, 0)
}

// Find returns token managers matching filter, using the indexed
// columns in SQL.
func (t *TokenManagerTable) Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.State != nil {
		add("state", filter.State.String())
	}
	if filter.Issuer != nil {
		add("issuer", filter.Issuer.String())
	}
	if filter.Recipient != nil {
		add("recipient", filter.Recipient.String())
	}
	if filter.Mint != nil {
		add("mint", filter.Mint.String())
	}

	query := tmFind
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return t.query(ctx, query, args, nil, filter.Limit)
}

func (t *TokenManagerTable) query(ctx context.Context, query string, args []any, match func(*domain.TokenManager) bool, limit int) ([]*domain.TokenManager, error) {
	var rows [][]byte
	if err := t.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageErr(err)
	}
	out := make([]*domain.TokenManager, 0, len(rows))
	for _, data := range rows {
		tm, err := decode[domain.TokenManager](tmSchema.Kind, data)
		if err != nil {
			return nil, err
		}
		if match == nil || match(tm) {
			out = append(out, tm)
		}
	}
	storage.SortByKey(out, tmSchema.Key)
	return storage.Limit(out, limit), nil
}
