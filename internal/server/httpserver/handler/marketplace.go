package handler

import (
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
)

// CreateMarketplace handles POST /v1/marketplaces.
func (h *Handler) CreateMarketplace(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateMarketplaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.marketplace.InitMarketplace(r.Context(), &service.InitMarketplaceRequest{
		Name:           req.Name,
		Authority:      authority,
		PaymentManager: req.PaymentManager,
		PaymentMints:   req.PaymentMints,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, m)
}

// GetMarketplace handles GET /v1/marketplaces/{id}.
func (h *Handler) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	m, err := h.marketplace.GetMarketplace(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, m)
}

// UpdateMarketplace handles POST /v1/marketplaces/{id}.
func (h *Handler) UpdateMarketplace(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	var req UpdateMarketplaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.marketplace.UpdateMarketplace(r.Context(), &service.UpdateMarketplaceRequest{
		ID:             id,
		Authority:      authority,
		NewAuthority:   req.NewAuthority,
		PaymentManager: req.PaymentManager,
		PaymentMints:   req.PaymentMints,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, m)
}

// CreateListing handles POST /v1/listings.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateListingRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.marketplace.CreateListing(r.Context(), &service.CreateListingRequest{
		Lister:        lister,
		TokenManager:  req.TokenManager,
		Marketplace:   req.Marketplace,
		PaymentAmount: req.PaymentAmount,
		PaymentMint:   req.PaymentMint,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, listingResponse(resp))
}

// GetListing handles GET /v1/listings/{id}. The id is the listed token
// manager.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	l, err := h.marketplace.GetListing(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, l)
}

// ListListings handles GET /v1/listings?marketplace=.
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	m, err := queryKey(r, "marketplace")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var marketplace solana.PublicKey
	if m != nil {
		marketplace = *m
	}
	items, err := h.marketplace.ListListings(r.Context(), marketplace)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Listing{}
	}
	h.writeJSON(w, r, http.StatusOK, ListListingsResponse{Items: items, Total: len(items)})
}

// UpdateListing handles POST /v1/listings/{id}.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	var req UpdateListingRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.marketplace.UpdateListing(r.Context(), &service.UpdateListingRequest{
		ID:            id,
		Lister:        lister,
		PaymentAmount: req.PaymentAmount,
		PaymentMint:   req.PaymentMint,
		Marketplace:   req.Marketplace,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, l)
}

// RemoveListing handles POST /v1/listings/{id}/remove.
func (h *Handler) RemoveListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.marketplace.RemoveListing(r.Context(), &service.RemoveListingRequest{ID: id, Caller: caller})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, listingResponse(resp))
}

// AcceptListing handles POST /v1/listings/{id}/accept.
func (h *Handler) AcceptListing(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathKey(w, r, "id")
	if !ok {
		return
	}
	var req AcceptListingRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.marketplace.AcceptListing(r.Context(), &service.AcceptListingRequest{
		ID:              id,
		Buyer:           buyer,
		PaymentAmount:   req.PaymentAmount,
		BuySideReceiver: req.BuySideReceiver,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, listingResponse(resp))
}

func listingResponse(resp *service.ListingResponse) ListingResponse {
	return ListingResponse{
		Listing:      resp.Listing,
		TokenManager: resp.TokenManager,
		Receipt:      resp.Receipt,
	}
}
