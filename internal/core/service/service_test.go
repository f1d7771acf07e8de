package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/custody/ledger"
	"github.com/yndnr/tokvault-go/internal/storage/memory"
)

const t0 int64 = 1_700_000_000

// fixture wires the services over an in-memory store and ledger.
type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	ledger   *ledger.Ledger
	clock    *ManualClock
	svc      *Services
	receipts *recorder
	managers *flakyManagers

	issuer    solana.PublicKey
	collector solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.New(ctx)
	require.NoError(t, err)

	store := memory.New(memory.WithShards(4))
	f := &fixture{
		t:         t,
		ctx:       ctx,
		store:     store,
		ledger:    l,
		clock:     NewManualClock(t0),
		receipts:  &recorder{},
		managers:  &flakyManagers{TokenManagerRepository: store.TokenManagers},
		issuer:    newKey(),
		collector: newKey(),
	}
	f.svc = New(Deps{
		Repos: Repositories{
			TokenManagers:   f.managers,
			PaymentManagers: store.PaymentManagers,
			MintMetadata:    store.MintMetadata,
			Marketplaces:    store.Marketplaces,
			Listings:        store.Listings,
		},
		Custody:             l,
		Clock:               f.clock,
		Observer:            f.receipts,
		DefaultFeeCollector: f.collector,
	})
	return f
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// fund credits owner with amount of mint.
func (f *fixture) fund(mint, owner solana.PublicKey, amount uint64) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(f.ctx, mint, owner, amount))
}

func (f *fixture) balance(mint, owner solana.PublicKey) uint64 {
	f.t.Helper()
	b, err := f.ledger.Balance(f.ctx, mint, owner)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) account(mint, owner solana.PublicKey) *ledger.Account {
	f.t.Helper()
	a, err := f.ledger.Account(f.ctx, mint, owner)
	require.NoError(f.t, err)
	return a
}

// issue escrows a fresh one-unit asset with req's policies filled in.
func (f *fixture) issue(req IssueRequest) *domain.TokenManager {
	f.t.Helper()
	if req.Mint.IsZero() {
		req.Mint = newKey()
	}
	if req.Issuer.IsZero() {
		req.Issuer = f.issuer
	}
	if req.Amount == 0 {
		req.Amount = 1
	}
	if req.Kind == 0 {
		req.Kind = domain.KindUnmanaged
	}
	if req.InvalidationType == 0 {
		req.InvalidationType = domain.InvalidationReturn
	}
	if req.Kind.RequiresMintAuthority() {
		require.NoError(f.t, f.ledger.SetMintAuthority(f.ctx, req.Mint, true))
	}
	f.fund(req.Mint, req.Issuer, req.Amount)

	resp, err := f.svc.Custody.Issue(f.ctx, &req)
	require.NoError(f.t, err)
	return resp.TokenManager
}

func (f *fixture) claim(tm *domain.TokenManager, recipient solana.PublicKey) *domain.TokenManager {
	f.t.Helper()
	resp, err := f.svc.Custody.Claim(f.ctx, &ClaimRequest{ID: tm.ID, Recipient: recipient})
	require.NoError(f.t, err)
	return resp.TokenManager
}

func (f *fixture) get(id solana.PublicKey) *domain.TokenManager {
	f.t.Helper()
	tm, err := f.svc.Custody.Get(f.ctx, id)
	require.NoError(f.t, err)
	return tm
}

func i64(v int64) *int64 { return &v }

func u64(v uint64) *uint64 { return &v }

func u16(v uint16) *uint16 { return &v }

func key(k solana.PublicKey) *solana.PublicKey { return &k }

// recorder collects observed receipts.
type recorder struct {
	mu   sync.Mutex
	list []*domain.Receipt
}

func (r *recorder) Observe(rc *domain.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, rc)
}

func (r *recorder) last() *domain.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return nil
	}
	return r.list[len(r.list)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

var errInjected = errors.New("injected write failure")

// flakyManagers fails token manager writes on demand.
type flakyManagers struct {
	TokenManagerRepository
	failUpdates bool
	failCreates bool
}

func (m *flakyManagers) Update(ctx context.Context, tm *domain.TokenManager, expected uint64) error {
	if m.failUpdates {
		return errInjected
	}
	return m.TokenManagerRepository.Update(ctx, tm, expected)
}

func (m *flakyManagers) Create(ctx context.Context, tm *domain.TokenManager) error {
	if m.failCreates {
		return errInjected
	}
	return m.TokenManagerRepository.Create(ctx, tm)
}
