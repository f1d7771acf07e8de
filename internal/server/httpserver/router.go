package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Services *service.Services
	Ledger   handler.Ledger

	// Auth validates API keys. Required unless DisableAuth is set.
	Auth *service.AuthService
	// Signatures verifies caller signatures; nil trusts X-Caller.
	Signatures  *service.SignatureService
	DisableAuth bool

	// Metrics, when set, records request metrics and serves MetricsPath.
	Metrics     *metric.Registry
	MetricsPath string

	Logger       logger.Logger
	Ready        func(ctx context.Context) error
	MaxBodyBytes int64
	IPRateLimit  int
}

// NewRouter creates the router with all routes and middleware.
//
// Health probes are open. Everything under /v1 needs an API key; reads
// need the read permission and writes the permission of their area.
// /admin/v1 needs the ledger permission.
func NewRouter(cfg *RouterConfig) http.Handler {
	lg := cfg.Logger
	if lg == nil {
		lg = logger.Default()
	}
	h := handler.New(handler.Config{
		Services: cfg.Services,
		Ledger:   cfg.Ledger,
		Logger:   lg,
		Ready:    cfg.Ready,
	})
	mw := &MiddlewareConfig{
		Auth:        cfg.Auth,
		Signatures:  cfg.Signatures,
		Logger:      lg,
		DisableAuth: cfg.DisableAuth,
	}
	perm := func(p domain.Permission) Middleware { return RequirePermission(mw, p) }

	r := chi.NewRouter()
	r.Use(RequestID(), Recover(lg))
	if cfg.Metrics != nil {
		r.Use(Metrics(cfg.Metrics))
	}
	r.Use(RateLimit(cfg.IPRateLimit), MaxBody(cfg.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, r, http.StatusNotFound, "TV-SYS-4040", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, r, http.StatusMethodNotAllowed, "TV-SYS-4050", "method not allowed", nil)
	})

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.With(Authenticate(mw), perm(domain.PermMetricsRead)).Handle(path, cfg.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(mw), Caller(mw), Audit(lg))

		r.Route("/token-managers", func(r chi.Router) {
			r.With(perm(domain.PermRead)).Get("/", h.ListTokenManagers)
			r.With(perm(domain.PermRead)).Get("/{id}", h.GetTokenManager)

			r.Group(func(r chi.Router) {
				r.Use(perm(domain.PermCustody))
				r.Post("/", h.Issue)
				r.Post("/{id}/claim", h.Claim)
				r.Post("/{id}/use", h.Use)
				r.Post("/{id}/extend-time", h.ExtendTime)
				r.Post("/{id}/extend-usages", h.ExtendUsages)
				r.Post("/{id}/invalidate", h.Invalidate)
				r.Post("/{id}/unissue", h.Unissue)
				r.Post("/{id}/evaluate", h.Evaluate)
				r.Post("/{id}/close", h.Close)
				r.Post("/{id}/invalidation-type", h.UpdateInvalidationType)
				r.Post("/{id}/invalidators/replace", h.ReplaceInvalidator)
				r.Post("/{id}/max-expiration", h.UpdateMaxExpiration)
			})
		})

		r.With(perm(domain.PermRead)).Post("/fees/quote", h.Quote)

		r.Route("/payment-managers", func(r chi.Router) {
			r.With(perm(domain.PermRead)).Get("/", h.ListPaymentManagers)
			r.With(perm(domain.PermRead)).Get("/{id}", h.GetPaymentManager)
			r.With(perm(domain.PermPayments)).Post("/", h.CreatePaymentManager)
			r.With(perm(domain.PermPayments)).Post("/{id}", h.UpdatePaymentManager)
		})

		r.Route("/mints", func(r chi.Router) {
			r.With(perm(domain.PermRead)).Get("/{mint}", h.GetMint)
			r.With(perm(domain.PermPayments)).Post("/", h.RegisterMint)
		})

		r.Route("/marketplaces", func(r chi.Router) {
			r.With(perm(domain.PermRead)).Get("/{id}", h.GetMarketplace)
			r.With(perm(domain.PermMarketplace)).Post("/", h.CreateMarketplace)
			r.With(perm(domain.PermMarketplace)).Post("/{id}", h.UpdateMarketplace)
		})

		r.Route("/listings", func(r chi.Router) {
			r.With(perm(domain.PermRead)).Get("/", h.ListListings)
			r.With(perm(domain.PermRead)).Get("/{id}", h.GetListing)

			r.Group(func(r chi.Router) {
				r.Use(perm(domain.PermMarketplace))
				r.Post("/", h.CreateListing)
				r.Post("/{id}", h.UpdateListing)
				r.Post("/{id}/remove", h.RemoveListing)
				r.Post("/{id}/accept", h.AcceptListing)
			})
		})

		r.With(perm(domain.PermRead)).Get("/ledger/{mint}/{owner}", h.GetAccount)
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(Authenticate(mw), perm(domain.PermLedger), Audit(lg))
		r.Post("/ledger/mint", h.MintTo)
		r.Post("/ledger/mint-authority", h.SetMintAuthority)
	})

	return r
}
