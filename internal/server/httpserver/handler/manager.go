package handler

import (
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
)

// Issue handles POST /v1/token-managers. The caller is the issuer.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	issuer, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req IssueRequest
	if !h.decode(w, r, &req) {
		return
	}

	svcReq := &service.IssueRequest{
		Issuer:             issuer,
		Mint:               req.Mint,
		Amount:             req.Amount,
		Kind:               domain.KindUnmanaged,
		InvalidationType:   domain.InvalidationReturn,
		TimeInvalidator:    req.TimeInvalidator,
		UseInvalidator:     req.UseInvalidator,
		CustomInvalidators: req.CustomInvalidators,
	}
	if req.Kind != nil {
		svcReq.Kind = *req.Kind
	}
	if req.InvalidationType != nil {
		svcReq.InvalidationType = *req.InvalidationType
	}
	if ca := req.ClaimApprover; ca != nil {
		svcReq.ClaimApprover = &service.ClaimApproverRequest{
			Identity:   ca.Identity,
			Credential: ca.Credential,
			Payment:    ca.Payment,
		}
	}

	resp, err := h.custody.Issue(r.Context(), svcReq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, IssueResponse{
		TokenManager: resp.TokenManager,
		Receipt:      resp.Receipt,
		ClaimSecret:  resp.ClaimSecret,
	})
}

// GetTokenManager handles GET /v1/token-managers/{id}.
func (h *Handler) GetTokenManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	tm, err := h.custody.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, tm)
}

// ListTokenManagers handles GET /v1/token-managers.
func (h *Handler) ListTokenManagers(w http.ResponseWriter, r *http.Request) {
	var (
		filter domain.TokenManagerFilter
		err    error
	)
	q := r.URL.Query()
	if s := q.Get("state"); s != "" {
		st, err := domain.ParseState(s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.State = &st
	}
	if filter.Issuer, err = queryKey(r, "issuer"); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.Recipient, err = queryKey(r, "recipient"); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.Mint, err = queryKey(r, "mint"); err != nil {
		h.fail(w, r, err)
		return
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.fail(w, r, domain.ErrInvalidArgument.WithDetails("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	items, err := h.custody.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.TokenManager{}
	}
	h.writeJSON(w, r, http.StatusOK, ListTokenManagersResponse{Items: items, Total: len(items)})
}

// transition runs a token manager operation bound to the caller and the
// path identity.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, body any,
	run func(c, id solana.PublicKey) (*service.TransitionResponse, error)) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	if body != nil && !h.decode(w, r, body) {
		return
	}
	resp, err := run(caller, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, TransitionResponse{TokenManager: resp.TokenManager, Receipt: resp.Receipt})
}

// Claim handles POST /v1/token-managers/{id}/claim. The caller is the recipient.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		svcReq := &service.ClaimRequest{ID: id, Recipient: c, Secret: req.Secret, Payer: req.Payer}
		return h.custody.Claim(r.Context(), svcReq)
	})
}

// Use handles POST /v1/token-managers/{id}/use.
func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	var req UseRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		if req.Usages == 0 {
			req.Usages = 1
		}
		return h.custody.Use(r.Context(), &service.UseRequest{ID: id, Caller: c, Usages: req.Usages})
	})
}

// ExtendTime handles POST /v1/token-managers/{id}/extend-time. The caller pays.
func (h *Handler) ExtendTime(w http.ResponseWriter, r *http.Request) {
	var req ExtendTimeRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.ExtendTime(r.Context(), &service.ExtendTimeRequest{ID: id, Payer: c, Seconds: req.Seconds})
	})
}

// ExtendUsages handles POST /v1/token-managers/{id}/extend-usages. The caller pays.
func (h *Handler) ExtendUsages(w http.ResponseWriter, r *http.Request) {
	var req ExtendUsagesRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.ExtendUsages(r.Context(), &service.ExtendUsagesRequest{ID: id, Payer: c, Usages: req.Usages})
	})
}

// Invalidate handles POST /v1/token-managers/{id}/invalidate.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, nil, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.Invalidate(r.Context(), &service.InvalidateRequest{ID: id, Caller: c})
	})
}

// Unissue handles POST /v1/token-managers/{id}/unissue.
func (h *Handler) Unissue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, nil, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.Unissue(r.Context(), &service.UnissueRequest{ID: id, Issuer: c})
	})
}

// Close handles POST /v1/token-managers/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, nil, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.Close(r.Context(), &service.CloseRequest{ID: id, Caller: c})
	})
}

// UpdateInvalidationType handles POST /v1/token-managers/{id}/invalidation-type.
func (h *Handler) UpdateInvalidationType(w http.ResponseWriter, r *http.Request) {
	var req InvalidationTypeRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.UpdateInvalidationType(r.Context(), &service.UpdateInvalidationTypeRequest{
			ID: id, Issuer: c, InvalidationType: req.InvalidationType,
		})
	})
}

// ReplaceInvalidator handles POST /v1/token-managers/{id}/invalidators/replace.
func (h *Handler) ReplaceInvalidator(w http.ResponseWriter, r *http.Request) {
	var req ReplaceInvalidatorRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.ReplaceInvalidator(r.Context(), &service.ReplaceInvalidatorRequest{
			ID: id, Caller: c, NewInvalidator: req.NewInvalidator,
		})
	})
}

// UpdateMaxExpiration handles POST /v1/token-managers/{id}/max-expiration.
func (h *Handler) UpdateMaxExpiration(w http.ResponseWriter, r *http.Request) {
	var req MaxExpirationRequest
	h.transition(w, r, &req, func(c, id solana.PublicKey) (*service.TransitionResponse, error) {
		return h.custody.UpdateMaxExpiration(r.Context(), &service.UpdateMaxExpirationRequest{
			ID: id, Issuer: c, MaxExpiration: req.MaxExpiration,
		})
	})
}

// Evaluate handles POST /v1/token-managers/{id}/evaluate. Anyone may crank.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.custody.Evaluate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, EvaluateResponse{
		Fired:        resp.Fired,
		TokenManager: resp.TokenManager,
		Receipt:      resp.Receipt,
	})
}
