package metric

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

func TestRegistry_Observe(t *testing.T) {
	r := NewRegistry()

	r.Observe(&domain.Receipt{Operation: domain.OperationClaim, State: domain.StateClaimed})
	r.Observe(&domain.Receipt{
		Operation: domain.OperationAcceptListing,
		State:     domain.StateClaimed,
		Fees:      &domain.FeeBreakdown{PaymentAmount: 1000, TotalFees: 80},
	})
	r.Observe(&domain.Receipt{
		Operation: domain.OperationEvaluate,
		State:     domain.StateInvalidated,
		Trigger:   &domain.Trigger{Reason: domain.ReasonExpired},
		Outcome:   domain.OutcomeReturn,
	})

	if got := testutil.ToFloat64(r.Transitions.WithLabelValues("claim", "claimed")); got != 1 {
		t.Errorf("claim transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.Invalidations.WithLabelValues("expired", "return")); got != 1 {
		t.Errorf("expired invalidations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.PaymentVolume.WithLabelValues("accept_listing")); got != 1000 {
		t.Errorf("payment volume = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(r.FeesCollected); got != 80 {
		t.Errorf("fees collected = %v, want 80", got)
	}
}

func TestRegistry_ObserveRequest(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest(http.MethodGet, "/v1/token-managers/{id}", 200, 5*time.Millisecond)
	r.ObserveRequest(http.MethodGet, "", 404, time.Millisecond)

	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("GET", "/v1/token-managers/{id}", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.CrankRuns.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"tokvault_crank_runs_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

type fakeSource struct {
	managers []*domain.TokenManager
	err      error
}

func (f *fakeSource) Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error) {
	return f.managers, f.err
}

func TestCollector(t *testing.T) {
	recipient := solana.NewWallet().PublicKey()
	src := &fakeSource{managers: []*domain.TokenManager{
		{State: domain.StateIssued},
		{State: domain.StateClaimed, Recipient: &recipient, Listed: true},
		{State: domain.StateClaimed, Recipient: &recipient},
		{State: domain.StateInvalidated},
	}}
	c := NewCollector(src)

	expected := `
# HELP tokvault_token_managers Token managers by state.
# TYPE tokvault_token_managers gauge
tokvault_token_managers{state="claimed"} 2
tokvault_token_managers{state="invalidated"} 1
tokvault_token_managers{state="issued"} 1
# HELP tokvault_token_managers_listed Claimed token managers currently listed for sale.
# TYPE tokvault_token_managers_listed gauge
tokvault_token_managers_listed 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"tokvault_token_managers", "tokvault_token_managers_listed"); err != nil {
		t.Error(err)
	}

	src.err = errors.New("store down")
	if n := testutil.CollectAndCount(c); n != 1 {
		t.Errorf("metrics on store failure = %d, want 1 (store_up)", n)
	}
}
