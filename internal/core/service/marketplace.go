package service

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

// MarketplaceService sells claimed token managers through listings.
type MarketplaceService struct {
	*base
}

// ============================================================================
// Marketplaces
// ============================================================================

// InitMarketplaceRequest contains parameters for a new marketplace.
type InitMarketplaceRequest struct {
	Name           string
	Authority      solana.PublicKey
	PaymentManager solana.PublicKey
	PaymentMints   []solana.PublicKey
}

// InitMarketplace registers a marketplace under its name. Its payment
// manager must pay royalties.
func (s *MarketplaceService) InitMarketplace(ctx context.Context, req *InitMarketplaceRequest) (*domain.Marketplace, error) {
	id, bump, err := domain.MarketplaceAddress(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Authority.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("authority is required")
	}
	if err := s.checkPaymentManager(ctx, req.PaymentManager); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	m := &domain.Marketplace{
		ID:             id,
		Bump:           bump,
		Name:           req.Name,
		Authority:      req.Authority,
		PaymentManager: req.PaymentManager,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.SetPaymentMints(req.PaymentMints)

	if err := s.repos.Marketplaces.Create(ctx, m); err != nil {
		return nil, storageErr(err)
	}
	return m, nil
}

func (s *MarketplaceService) checkPaymentManager(ctx context.Context, id solana.PublicKey) error {
	pm, err := s.repos.PaymentManagers.Get(ctx, id)
	if err != nil {
		return storageErr(err)
	}
	if !pm.IncludeSellerFeeBasisPoints {
		return domain.ErrInvalidPaymentManager.WithDetails("marketplace payment manager must include seller fee basis points")
	}
	return nil
}

// UpdateMarketplaceRequest changes a marketplace. Nil fields are kept.
type UpdateMarketplaceRequest struct {
	ID             solana.PublicKey
	Authority      solana.PublicKey // Caller
	NewAuthority   *solana.PublicKey
	PaymentManager *solana.PublicKey
	PaymentMints   *[]solana.PublicKey
}

// UpdateMarketplace applies req on behalf of the authority.
func (s *MarketplaceService) UpdateMarketplace(ctx context.Context, req *UpdateMarketplaceRequest) (*domain.Marketplace, error) {
	m, err := s.repos.Marketplaces.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !m.Authority.Equals(req.Authority) {
		return nil, domain.ErrUnauthorized.WithDetails("only the authority may update the marketplace")
	}

	expected := m.Version
	if req.PaymentManager != nil {
		if err := s.checkPaymentManager(ctx, *req.PaymentManager); err != nil {
			return nil, err
		}
		m.PaymentManager = *req.PaymentManager
	}
	setKey(&m.Authority, req.NewAuthority)
	if req.PaymentMints != nil {
		m.SetPaymentMints(*req.PaymentMints)
	}

	m.UpdatedAt = s.clock.Now()
	if err := s.repos.Marketplaces.Update(ctx, m, expected); err != nil {
		return nil, storageErr(err)
	}
	return m, nil
}

// GetMarketplace retrieves a marketplace by ID.
func (s *MarketplaceService) GetMarketplace(ctx context.Context, id solana.PublicKey) (*domain.Marketplace, error) {
	m, err := s.repos.Marketplaces.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return m, nil
}

// ============================================================================
// Listings
// ============================================================================

// CreateListingRequest contains parameters for listing a token manager.
type CreateListingRequest struct {
	Lister        solana.PublicKey
	TokenManager  solana.PublicKey
	Marketplace   solana.PublicKey
	PaymentAmount uint64
	PaymentMint   solana.PublicKey
}

// ListingResponse is returned by listing transitions.
type ListingResponse struct {
	Listing      *domain.Listing
	TokenManager *domain.TokenManager
	Receipt      *domain.Receipt
}

// CreateListing offers a claimed token manager for sale. The holder's
// account is delegated to the manager until the listing ends.
func (s *MarketplaceService) CreateListing(ctx context.Context, req *CreateListingRequest) (*ListingResponse, error) {
	// 1. Validate against the marketplace
	m, err := s.repos.Marketplaces.Get(ctx, req.Marketplace)
	if err != nil {
		return nil, storageErr(err)
	}
	if req.PaymentMint.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("payment_mint is required")
	}
	if !m.AllowsPaymentMint(req.PaymentMint) {
		return nil, domain.ErrPaymentMintNotAllowed.WithDetailsf("mint %s", req.PaymentMint)
	}

	unlock := s.locks.Lock(req.TokenManager)
	defer unlock()

	// 2. Only the recipient of a claimed manager may list it
	tm, err := s.repos.TokenManagers.Get(ctx, req.TokenManager)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := tm.Check(domain.OperationListing); err != nil {
		return nil, err
	}
	if !tm.IsRecipient(req.Lister) {
		return nil, domain.ErrUnauthorized.WithDetails("only the recipient may list")
	}
	if tm.Listed {
		return nil, domain.ErrListingConflict
	}

	id, bump, err := domain.ListingAddress(tm.ID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	listing := &domain.Listing{
		ID:            id,
		Bump:          bump,
		TokenManager:  tm.ID,
		Mint:          tm.Mint,
		Lister:        req.Lister,
		Marketplace:   m.ID,
		PaymentAmount: req.PaymentAmount,
		PaymentMint:   req.PaymentMint,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// 3. Delegate and persist both records
	ops := listOps(tm)
	before := tm.Clone()
	tm.Listed = true
	create := step{
		name: "listing",
		do:   func(ctx context.Context) error { return s.repos.Listings.Create(ctx, listing) },
		undo: func(ctx context.Context) error { return s.repos.Listings.Delete(ctx, listing.ID) },
	}
	if err := s.commit(ctx, ops, create, s.updateManager(tm, before)); err != nil {
		return nil, err
	}

	return &ListingResponse{
		Listing:      listing,
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationCreateListing, tm, ops, nil),
	}, nil
}

// UpdateListingRequest changes the price of a listing.
type UpdateListingRequest struct {
	ID            solana.PublicKey
	Lister        solana.PublicKey
	PaymentAmount uint64
	PaymentMint   *solana.PublicKey
	Marketplace   *solana.PublicKey
}

// UpdateListing changes the terms of a listing on behalf of its lister.
func (s *MarketplaceService) UpdateListing(ctx context.Context, req *UpdateListingRequest) (*domain.Listing, error) {
	listing, err := s.repos.Listings.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !listing.Lister.Equals(req.Lister) {
		return nil, domain.ErrUnauthorized.WithDetails("only the lister may update the listing")
	}

	unlock := s.locks.Lock(listing.TokenManager)
	defer unlock()

	expected := listing.Version
	if req.Marketplace != nil {
		listing.Marketplace = *req.Marketplace
	}
	if req.PaymentMint != nil {
		listing.PaymentMint = *req.PaymentMint
	}
	m, err := s.repos.Marketplaces.Get(ctx, listing.Marketplace)
	if err != nil {
		return nil, storageErr(err)
	}
	if !m.AllowsPaymentMint(listing.PaymentMint) {
		return nil, domain.ErrPaymentMintNotAllowed.WithDetailsf("mint %s", listing.PaymentMint)
	}

	listing.PaymentAmount = req.PaymentAmount
	listing.UpdatedAt = s.clock.Now()
	if err := s.repos.Listings.Update(ctx, listing, expected); err != nil {
		return nil, storageErr(err)
	}
	return listing, nil
}

// RemoveListingRequest contains parameters for removing a listing.
type RemoveListingRequest struct {
	ID     solana.PublicKey
	Caller solana.PublicKey
}

// RemoveListing withdraws a listing. The lister, or the marketplace
// authority, may remove it; the holder's delegation is revoked when the
// listing still backs it.
func (s *MarketplaceService) RemoveListing(ctx context.Context, req *RemoveListingRequest) (*ListingResponse, error) {
	listing, err := s.repos.Listings.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !listing.Lister.Equals(req.Caller) {
		m, err := s.repos.Marketplaces.Get(ctx, listing.Marketplace)
		if err != nil {
			return nil, storageErr(err)
		}
		if !m.Authority.Equals(req.Caller) {
			return nil, domain.ErrUnauthorized.WithDetails("only the lister or marketplace authority may remove the listing")
		}
	}

	unlock := s.locks.Lock(listing.TokenManager)
	defer unlock()

	tm, err := s.repos.TokenManagers.Get(ctx, listing.TokenManager)
	if err != nil && !domain.IsDomainError(err, domain.ErrTokenManagerNotFound.Code) {
		return nil, storageErr(err)
	}

	// A stale listing (manager invalidated, reissued or closed) holds no custody.
	var ops []domain.CustodyOp
	steps := []step{s.deleteListing(listing.ID, listing)}
	if tm != nil && tm.Listed && tm.IsRecipient(listing.Lister) {
		ops = unlistOps(tm)
		before := tm.Clone()
		tm.Listed = false
		steps = append(steps, s.updateManager(tm, before))
	}
	if err := s.commit(ctx, ops, steps...); err != nil {
		return nil, err
	}

	resp := &ListingResponse{Listing: listing, TokenManager: tm}
	if tm != nil {
		resp.Receipt = s.receipt(domain.OperationRemoveListing, tm, ops, nil)
	}
	return resp, nil
}

// GetListing retrieves a listing by ID.
func (s *MarketplaceService) GetListing(ctx context.Context, id solana.PublicKey) (*domain.Listing, error) {
	listing, err := s.repos.Listings.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return listing, nil
}

// ListListings returns the listings of a marketplace, or all listings
// when marketplace is zero.
func (s *MarketplaceService) ListListings(ctx context.Context, marketplace solana.PublicKey) ([]*domain.Listing, error) {
	listings, err := s.repos.Listings.List(ctx, func(l *domain.Listing) bool {
		return marketplace.IsZero() || l.Marketplace.Equals(marketplace)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return listings, nil
}

// ============================================================================
// Accept
// ============================================================================

// AcceptListingRequest contains parameters for buying a listed manager.
type AcceptListingRequest struct {
	ID    solana.PublicKey
	Buyer solana.PublicKey
	// PaymentAmount, when set, must equal the listed price.
	PaymentAmount *uint64
	// BuySideReceiver gets the buy side fee; the fee collector if zero.
	BuySideReceiver solana.PublicKey
}

// AcceptListing settles the sale and moves custody to the buyer in one
// transition: payment from the buyer, release of the lister's account,
// transfer, custody reapplied to the buyer.
func (s *MarketplaceService) AcceptListing(ctx context.Context, req *AcceptListingRequest) (*ListingResponse, error) {
	if req.Buyer.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("buyer is required")
	}
	listing, err := s.repos.Listings.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}

	unlock := s.locks.Lock(listing.TokenManager)
	defer unlock()

	// 1. Re-read under the lock; the listing must still back the manager
	if listing, err = s.repos.Listings.Get(ctx, req.ID); err != nil {
		return nil, storageErr(err)
	}
	if req.PaymentAmount != nil && *req.PaymentAmount != listing.PaymentAmount {
		return nil, domain.ErrInvalidArgument.WithDetailsf("listing price is %d", listing.PaymentAmount)
	}
	if listing.Lister.Equals(req.Buyer) {
		return nil, domain.ErrInvalidArgument.WithDetails("buyer is the lister")
	}
	tm, err := s.repos.TokenManagers.Get(ctx, listing.TokenManager)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := tm.Check(domain.OperationListing); err != nil {
		return nil, err
	}
	if !tm.Listed || !tm.IsRecipient(listing.Lister) {
		return nil, domain.ErrInvalidState.WithDetails("listing no longer backs the token manager")
	}
	if err := s.checkLive(tm); err != nil {
		return nil, err
	}
	m, err := s.repos.Marketplaces.Get(ctx, listing.Marketplace)
	if err != nil {
		return nil, storageErr(err)
	}

	// 2. Payment from the buyer
	breakdown, ops, err := s.settle(ctx, payment{
		manager: m.PaymentManager,
		mint:    listing.PaymentMint,
		asset:   tm.Mint,
		amount:  listing.PaymentAmount,
		party: fees.Party{
			Payer:           req.Buyer,
			Payee:           listing.Lister,
			BuySideReceiver: req.BuySideReceiver,
		},
	})
	if err != nil {
		return nil, err
	}

	// 3. Custody: release lister, move, lock buyer
	ops = append(ops, releaseOps(tm)...)
	ops = append(ops, transfer(tm, listing.Lister, req.Buyer)...)
	ops = append(ops, lockOps(tm, req.Buyer)...)

	before := tm.Clone()
	buyer := req.Buyer
	tm.Recipient = &buyer
	tm.Listed = false
	if err := s.commit(ctx, ops, s.updateManager(tm, before), s.deleteListing(listing.ID, listing)); err != nil {
		return nil, err
	}

	s.logger.Info("listing accepted",
		"listing", listing.ID.String(),
		"token_manager", tm.ID.String(),
		"price", listing.PaymentAmount)

	return &ListingResponse{
		Listing:      listing,
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationAcceptListing, tm, ops, breakdown),
	}, nil
}
