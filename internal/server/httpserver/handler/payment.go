package handler

import (
	"net/http"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
)

// Quote handles POST /v1/fees/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.payments.Quote(r.Context(), &service.QuoteRequest{
		PaymentManager: req.PaymentManager,
		Mint:           req.Mint,
		Amount:         req.Amount,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, b)
}

// CreatePaymentManager handles POST /v1/payment-managers.
func (h *Handler) CreatePaymentManager(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreatePaymentManagerRequest
	if !h.decode(w, r, &req) {
		return
	}
	pm, err := h.payments.CreatePaymentManager(r.Context(), &service.CreatePaymentManagerRequest{
		Name:                        req.Name,
		Authority:                   authority,
		FeeCollector:                req.FeeCollector,
		MakerFeeBasisPoints:         req.MakerFeeBasisPoints,
		TakerFeeBasisPoints:         req.TakerFeeBasisPoints,
		IncludeSellerFeeBasisPoints: req.IncludeSellerFeeBasisPoints,
		RoyaltyFeeShare:             req.RoyaltyFeeShare,
		BuySideFeeShare:             req.BuySideFeeShare,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, pm)
}

// GetPaymentManager handles GET /v1/payment-managers/{id}.
func (h *Handler) GetPaymentManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	pm, err := h.payments.GetPaymentManager(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, pm)
}

// ListPaymentManagers handles GET /v1/payment-managers.
func (h *Handler) ListPaymentManagers(w http.ResponseWriter, r *http.Request) {
	items, err := h.payments.ListPaymentManagers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.PaymentManager{}
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

// UpdatePaymentManager handles POST /v1/payment-managers/{id}. Only the
// current authority may update.
func (h *Handler) UpdatePaymentManager(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePaymentManagerRequest
	if !h.decode(w, r, &req) {
		return
	}
	pm, err := h.payments.UpdatePaymentManager(r.Context(), &service.UpdatePaymentManagerRequest{
		ID:                          id,
		Authority:                   authority,
		NewAuthority:                req.NewAuthority,
		FeeCollector:                req.FeeCollector,
		MakerFeeBasisPoints:         req.MakerFeeBasisPoints,
		TakerFeeBasisPoints:         req.TakerFeeBasisPoints,
		IncludeSellerFeeBasisPoints: req.IncludeSellerFeeBasisPoints,
		RoyaltyFeeShare:             req.RoyaltyFeeShare,
		BuySideFeeShare:             req.BuySideFeeShare,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, pm)
}

// RegisterMint handles POST /v1/mints.
func (h *Handler) RegisterMint(w http.ResponseWriter, r *http.Request) {
	var req RegisterMintRequest
	if !h.decode(w, r, &req) {
		return
	}
	md, err := h.payments.RegisterMint(r.Context(), &service.RegisterMintRequest{
		Mint:                 req.Mint,
		SellerFeeBasisPoints: req.SellerFeeBasisPoints,
		Creators:             req.Creators,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, md)
}

// GetMint handles GET /v1/mints/{mint}.
func (h *Handler) GetMint(w http.ResponseWriter, r *http.Request) {
	mint, ok := h.pathKey(w, r, "mint")
	if !ok {
		return
	}
	md, err := h.payments.GetMint(r.Context(), mint)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, md)
}
