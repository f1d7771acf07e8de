package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/custody/ledger"
	"github.com/yndnr/tokvault-go/internal/storage/memory"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

const t0 int64 = 1_700_000_000

type env struct {
	ctx    context.Context
	store  *memory.Store
	ledger *ledger.Ledger
	clock  *service.ManualClock
	svc    *service.Services
	issuer solana.PublicKey
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.New(ctx)
	require.NoError(t, err)
	store := memory.New()
	e := &env{
		ctx:    ctx,
		store:  store,
		ledger: l,
		clock:  service.NewManualClock(t0),
		issuer: solana.NewWallet().PublicKey(),
	}
	e.svc = service.New(service.Deps{
		Repos: service.Repositories{
			TokenManagers:   store.TokenManagers,
			PaymentManagers: store.PaymentManagers,
			MintMetadata:    store.MintMetadata,
			Marketplaces:    store.Marketplaces,
			Listings:        store.Listings,
		},
		Custody: l,
		Clock:   e.clock,
	})
	return e
}

// issueExpiring escrows a manager whose time policy fires at t0+maxAfter.
func (e *env) issueExpiring(t *testing.T, maxAfter int64) *domain.TokenManager {
	t.Helper()
	mint := solana.NewWallet().PublicKey()
	require.NoError(t, e.ledger.Mint(e.ctx, mint, e.issuer, 1))
	max := t0 + maxAfter
	resp, err := e.svc.Custody.Issue(e.ctx, &service.IssueRequest{
		Issuer:           e.issuer,
		Mint:             mint,
		Amount:           1,
		Kind:             domain.KindUnmanaged,
		InvalidationType: domain.InvalidationReturn,
		TimeInvalidator:  &domain.TimeInvalidator{MaxExpiration: &max},
	})
	require.NoError(t, err)
	return resp.TokenManager
}

func TestCrank_RunOnce(t *testing.T) {
	e := newEnv(t)
	soon := e.issueExpiring(t, 10)
	later := e.issueExpiring(t, 100)

	reg := metric.NewRegistry()
	c := New(e.store.TokenManagers, e.svc.Custody, Config{}, WithClock(e.clock), WithMetrics(reg))

	res, err := c.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2}, res, "nothing is due yet")

	e.clock.Advance(10)
	res, err = c.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Fired)
	assert.Zero(t, res.Failed)

	got, err := e.svc.Custody.Get(e.ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInvalidated, got.State)
	got, err = e.svc.Custody.Get(e.ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIssued, got.State)

	// Invalidated managers are no longer scanned.
	res, err = c.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)

	assert.Equal(t, float64(3), testutil.ToFloat64(reg.CrankRuns))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.CrankInvalidations))
}

func TestCrank_BatchSize(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.issueExpiring(t, 1)
	}
	e.clock.Advance(1)

	c := New(e.store.TokenManagers, e.svc.Custody, Config{BatchSize: 2}, WithClock(e.clock))
	res, err := c.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fired)

	res, err = c.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fired)
}

func TestCrank_StartStop(t *testing.T) {
	e := newEnv(t)
	tm := e.issueExpiring(t, 1)
	e.clock.Advance(1)

	c := New(e.store.TokenManagers, e.svc.Custody, Config{Spec: "* * * * * *"}, WithClock(e.clock))
	require.NoError(t, c.Start(e.ctx))
	assert.Error(t, c.Start(e.ctx), "second start is rejected")

	assert.Eventually(t, func() bool {
		got, err := e.svc.Custody.Get(e.ctx, tm.ID)
		return err == nil && got.State == domain.StateInvalidated
	}, 3*time.Second, 50*time.Millisecond)

	c.Stop()
	c.Stop()
}

func TestCrank_InvalidSpec(t *testing.T) {
	e := newEnv(t)
	c := New(e.store.TokenManagers, e.svc.Custody, Config{Spec: "every tuesday"})
	assert.Error(t, c.Start(e.ctx))
}
