package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func q(query string) string { return regexp.QuoteMeta(query) }

func testManager() *domain.TokenManager {
	return &domain.TokenManager{
		ID:               solana.NewWallet().PublicKey(),
		Kind:             domain.KindManaged,
		State:            domain.StateIssued,
		InvalidationType: domain.InvalidationReturn,
		Amount:           1,
		Mint:             solana.NewWallet().PublicKey(),
		Issuer:           solana.NewWallet().PublicKey(),
	}
}

func TestTokenManagerTable_Create(t *testing.T) {
	s, mock := newMockStore(t)
	tm := testManager()

	mock.ExpectExec(q(tmInsert)).
		WithArgs(tm.ID.String(), tm.Mint.String(), tm.Issuer.String(), nil, "issued", uint64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.TokenManagers.Create(context.Background(), tm))
	assert.Equal(t, uint64(1), tm.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenManagerTable_CreateConflict(t *testing.T) {
	s, mock := newMockStore(t)
	tm := testManager()

	mock.ExpectExec(q(tmInsert)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.TokenManagers.Create(context.Background(), tm)
	assert.True(t, errors.Is(err, domain.ErrTokenManagerConflict), "got %v", err)
}

func TestTokenManagerTable_Get(t *testing.T) {
	s, mock := newMockStore(t)
	tm := testManager()
	tm.Version = 3
	data, err := json.Marshal(tm)
	require.NoError(t, err)

	mock.ExpectQuery(q(tmSelect)).WithArgs(tm.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	got, err := s.TokenManagers.Get(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.Mint, got.Mint)
	assert.Equal(t, uint64(3), got.Version)

	missing := solana.NewWallet().PublicKey()
	mock.ExpectQuery(q(tmSelect)).WithArgs(missing.String()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	_, err = s.TokenManagers.Get(context.Background(), missing)
	assert.True(t, errors.Is(err, domain.ErrTokenManagerNotFound), "got %v", err)
}

func TestTokenManagerTable_UpdateVersioning(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	tm := testManager()
	recipient := solana.NewWallet().PublicKey()
	tm.MarkClaimed(recipient, 10)

	mock.ExpectExec(q(tmUpdate)).
		WithArgs(recipient.String(), "claimed", uint64(3), sqlmock.AnyArg(), tm.ID.String(), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.TokenManagers.Update(ctx, tm, 2))
	assert.Equal(t, uint64(3), tm.Version)

	mock.ExpectExec(q(tmUpdate)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q(tmVersion)).WithArgs(tm.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(7))
	err := s.TokenManagers.Update(ctx, tm, 3)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict), "got %v", err)

	mock.ExpectExec(q(tmUpdate)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q(tmVersion)).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	err = s.TokenManagers.Update(ctx, tm, 3)
	assert.True(t, errors.Is(err, domain.ErrTokenManagerNotFound), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenManagerTable_FindBuildsWhere(t *testing.T) {
	s, mock := newMockStore(t)
	issuer := solana.NewWallet().PublicKey()
	state := domain.StateClaimed

	a, b := testManager(), testManager()
	rows := sqlmock.NewRows([]string{"data"})
	for _, tm := range []*domain.TokenManager{a, b} {
		data, _ := json.Marshal(tm)
		rows.AddRow(data)
	}

	mock.ExpectQuery(q(tmFind+" WHERE state = $1 AND issuer = $2")).
		WithArgs("claimed", issuer.String()).
		WillReturnRows(rows)

	got, err := s.TokenManagers.Find(context.Background(), domain.TokenManagerFilter{
		State:  &state,
		Issuer: &issuer,
		Limit:  1,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_RecordLifecycle(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	pm := &domain.PaymentManager{ID: solana.NewWallet().PublicKey(), Name: "default", MakerFeeBasisPoints: 50}
	kind := storage.PaymentManagerSchema.Kind

	mock.ExpectExec(q(recordInsert)).
		WithArgs(kind, pm.ID.String(), uint64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.PaymentManagers.Create(ctx, pm))

	mock.ExpectExec(q(recordUpdate)).
		WithArgs(uint64(2), sqlmock.AnyArg(), kind, pm.ID.String(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.PaymentManagers.Update(ctx, pm, 1))
	assert.Equal(t, uint64(2), pm.Version)

	data, _ := json.Marshal(pm)
	mock.ExpectQuery(q(recordList)).WithArgs(kind).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))
	all, err := s.PaymentManagers.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint16(50), all[0].MakerFeeBasisPoints)

	mock.ExpectExec(q(recordDelete)).WithArgs(kind, pm.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = s.PaymentManagers.Delete(ctx, pm.ID)
	assert.True(t, errors.Is(err, domain.ErrPaymentManagerNotFound), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_StorageErrorsAreWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(q(recordSelect)).WillReturnError(boom)
	_, err := s.Marketplaces.Get(context.Background(), solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, domain.ErrStorageError), "got %v", err)
	assert.True(t, errors.Is(err, boom))
}

func TestKV_WriteBatchIsTransactional(t *testing.T) {
	s, mock := newMockStore(t)

	var batch storage.Batch
	batch.Set([]byte("acct/a"), []byte("1"))
	batch.Delete([]byte("acct/b"))

	mock.ExpectBegin()
	mock.ExpectExec(q(kvUpsert)).WithArgs([]byte("acct/a"), []byte("1")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(kvDelete)).WithArgs([]byte("acct/b")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := s.Ledger.WriteBatch(context.Background(), &batch)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_GetAndScan(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(q(kvGet)).WithArgs([]byte("missing")).WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, err := s.Ledger.Get(ctx, []byte("missing"))
	assert.True(t, errors.Is(err, storage.ErrKeyNotFound))

	mock.ExpectQuery(q(kvScan)).WithArgs([]byte("acct/"), 5).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow([]byte("acct/1"), []byte("a")).
			AddRow([]byte("acct/2"), []byte("b")))

	var values string
	require.NoError(t, s.Ledger.Scan(ctx, []byte("acct/"), func(_, v []byte) bool {
		values += string(v)
		return true
	}))
	assert.Equal(t, "ab", values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations(t *testing.T) {
	found, err := Migrations.FindMigrations()
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "0001_records", found[0].Id)
	for _, m := range found {
		assert.NotEmpty(t, m.Up, m.Id)
		assert.NotEmpty(t, m.Down, m.Id)
	}
}
