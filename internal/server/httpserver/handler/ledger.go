package handler

import (
	"net/http"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// GetAccount handles GET /v1/ledger/{mint}/{owner}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	mint, ok := h.pathKey(w, r, "mint")
	if !ok {
		return
	}
	owner, ok := h.pathKey(w, r, "owner")
	if !ok {
		return
	}
	acct, err := h.ledger.Account(r.Context(), mint, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, acct)
}

// MintTo handles POST /admin/v1/ledger/mint.
func (h *Handler) MintTo(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Mint.IsZero() || req.Owner.IsZero() {
		h.fail(w, r, domain.ErrMissingArgument.WithDetails("mint and owner are required"))
		return
	}
	if err := h.ledger.Mint(r.Context(), req.Mint, req.Owner, req.Amount); err != nil {
		h.fail(w, r, err)
		return
	}
	acct, err := h.ledger.Account(r.Context(), req.Mint, req.Owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("ledger credited by admin", "mint", req.Mint.String(), "owner", req.Owner.String(), "amount", req.Amount)
	h.writeJSON(w, r, http.StatusOK, acct)
}

// SetMintAuthority handles POST /admin/v1/ledger/mint-authority.
func (h *Handler) SetMintAuthority(w http.ResponseWriter, r *http.Request) {
	var req MintAuthorityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Mint.IsZero() {
		h.fail(w, r, domain.ErrMissingArgument.WithDetails("mint is required"))
		return
	}
	if err := h.ledger.SetMintAuthority(r.Context(), req.Mint, req.Granted); err != nil {
		h.fail(w, r, err)
		return
	}
	granted, err := h.ledger.HasMintAuthority(r.Context(), req.Mint)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, MintAuthorityRequest{Mint: req.Mint, Granted: granted})
}
