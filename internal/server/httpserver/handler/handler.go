package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/custody/ledger"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

// Ledger is the custody ledger as seen by the API.
type Ledger interface {
	Account(ctx context.Context, mint, owner solana.PublicKey) (*ledger.Account, error)
	Mint(ctx context.Context, mint, owner solana.PublicKey, amount uint64) error
	SetMintAuthority(ctx context.Context, mint solana.PublicKey, granted bool) error
	HasMintAuthority(ctx context.Context, mint solana.PublicKey) (bool, error)
}

// Config holds the dependencies of a Handler.
type Config struct {
	Services *service.Services
	Ledger   Ledger
	Logger   logger.Logger

	// Ready reports whether dependencies (e.g. the store) are usable.
	// Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler serves the API endpoints. Routes are bound by the router.
type Handler struct {
	custody     *service.CustodyService
	payments    *service.PaymentService
	marketplace *service.MarketplaceService
	ledger      Ledger
	logger      logger.Logger
	ready       func(ctx context.Context) error
	started     time.Time
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		custody:     cfg.Services.Custody,
		payments:    cfg.Services.Payments,
		marketplace: cfg.Services.Marketplace,
		ledger:      cfg.Ledger,
		logger:      cfg.Logger,
		ready:       cfg.Ready,
		started:     time.Now(),
	}
	if h.logger == nil {
		h.logger = logger.Default()
	}
	return h
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes an error envelope. It is shared with the middleware.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// WriteDomainError writes err as an error envelope, mapping domain codes
// to HTTP statuses and hiding anything else behind a 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, lg logger.Logger, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		lg.Error("internal error", "error", err, "path", r.URL.Path)
		WriteError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
		return
	}
	status := StatusFromCode(de.Code)
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "error", err, "path", r.URL.Path)
	}
	var details any
	if de.Details != "" {
		details = de.Details
	}
	WriteError(w, r, status, de.Code, de.Message, details)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteDomainError(w, r, h.logger.WithContext(r.Context()), err)
}

// StatusFromCode maps an error code to an HTTP status. The trailing number
// of TV-<AREA>-<NNNN> carries the status in its first three digits; ARG
// codes are bad requests.
func StatusFromCode(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	switch {
	case n >= 1000 && n < 2000:
		return http.StatusBadRequest
	case n/10 == 400:
		return http.StatusBadRequest
	case n/10 == 401:
		return http.StatusUnauthorized
	case n/10 == 403:
		return http.StatusForbidden
	case n/10 == 404:
		return http.StatusNotFound
	case n/10 == 409:
		return http.StatusConflict
	case n/10 == 422:
		return http.StatusUnprocessableEntity
	case n/10 == 429:
		return http.StatusTooManyRequests
	case n/10 == 503:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, domain.ErrBadRequest.Code, "request body too large", nil)
			return false
		}
		WriteError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", err.Error())
		return false
	}
	return true
}

// pathKey parses the identity in URL parameter name.
func (h *Handler) pathKey(w http.ResponseWriter, r *http.Request, name string) (solana.PublicKey, bool) {
	pk, err := domain.ParseIdentity(name, chi.URLParam(r, name))
	if err != nil {
		h.fail(w, r, err)
		return solana.PublicKey{}, false
	}
	return pk, true
}

// caller returns the acting identity, failing the request without one.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	c, ok := CallerFromContext(r.Context())
	if !ok {
		h.fail(w, r, domain.ErrCallerMissing)
		return solana.PublicKey{}, false
	}
	return c, true
}

// queryKey parses an optional identity query parameter.
func queryKey(r *http.Request, name string) (*solana.PublicKey, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	pk, err := domain.ParseIdentity(name, s)
	if err != nil {
		return nil, err
	}
	return &pk, nil
}
