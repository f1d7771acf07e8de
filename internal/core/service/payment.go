package service

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

// PaymentService manages payment managers and mint royalty terms, and
// quotes fee splits.
type PaymentService struct {
	*base
}

// ============================================================================
// Payment Managers
// ============================================================================

// CreatePaymentManagerRequest contains parameters for a new payment manager.
type CreatePaymentManagerRequest struct {
	Name                        string           // Required, address seed
	Authority                   solana.PublicKey // Required
	FeeCollector                solana.PublicKey // Defaults to the configured collector
	MakerFeeBasisPoints         uint16
	TakerFeeBasisPoints         uint16
	IncludeSellerFeeBasisPoints bool
	RoyaltyFeeShare             uint16
	BuySideFeeShare             uint16
}

// CreatePaymentManager registers a payment manager under its name.
func (s *PaymentService) CreatePaymentManager(ctx context.Context, req *CreatePaymentManagerRequest) (*domain.PaymentManager, error) {
	// 1. Derive the identity from the name
	id, bump, err := domain.PaymentManagerAddress(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Authority.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("authority is required")
	}

	collector := req.FeeCollector
	if collector.IsZero() {
		collector = s.defaultFeeCollector
	}
	if collector.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("fee_collector is required")
	}

	now := s.clock.Now()
	pm := &domain.PaymentManager{
		ID:                          id,
		Bump:                        bump,
		Name:                        req.Name,
		Authority:                   req.Authority,
		FeeCollector:                collector,
		MakerFeeBasisPoints:         req.MakerFeeBasisPoints,
		TakerFeeBasisPoints:         req.TakerFeeBasisPoints,
		IncludeSellerFeeBasisPoints: req.IncludeSellerFeeBasisPoints,
		RoyaltyFeeShare:             req.RoyaltyFeeShare,
		BuySideFeeShare:             req.BuySideFeeShare,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}

	// 2. Validate rates
	if err := fees.ConfigFor(pm, nil).Validate(); err != nil {
		return nil, err
	}

	// 3. Persist
	if err := s.repos.PaymentManagers.Create(ctx, pm); err != nil {
		return nil, storageErr(err)
	}
	return pm, nil
}

// UpdatePaymentManagerRequest changes a payment manager. Nil fields are kept.
type UpdatePaymentManagerRequest struct {
	ID                          solana.PublicKey
	Authority                   solana.PublicKey // Caller, must be the current authority
	NewAuthority                *solana.PublicKey
	FeeCollector                *solana.PublicKey
	MakerFeeBasisPoints         *uint16
	TakerFeeBasisPoints         *uint16
	IncludeSellerFeeBasisPoints *bool
	RoyaltyFeeShare             *uint16
	BuySideFeeShare             *uint16
}

// UpdatePaymentManager applies req on behalf of the authority.
func (s *PaymentService) UpdatePaymentManager(ctx context.Context, req *UpdatePaymentManagerRequest) (*domain.PaymentManager, error) {
	pm, err := s.repos.PaymentManagers.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !pm.Authority.Equals(req.Authority) {
		return nil, domain.ErrUnauthorized.WithDetails("only the authority may update the payment manager")
	}

	expected := pm.Version
	setKey(&pm.Authority, req.NewAuthority)
	setKey(&pm.FeeCollector, req.FeeCollector)
	setU16(&pm.MakerFeeBasisPoints, req.MakerFeeBasisPoints)
	setU16(&pm.TakerFeeBasisPoints, req.TakerFeeBasisPoints)
	setU16(&pm.RoyaltyFeeShare, req.RoyaltyFeeShare)
	setU16(&pm.BuySideFeeShare, req.BuySideFeeShare)
	if req.IncludeSellerFeeBasisPoints != nil {
		pm.IncludeSellerFeeBasisPoints = *req.IncludeSellerFeeBasisPoints
	}
	if err := fees.ConfigFor(pm, nil).Validate(); err != nil {
		return nil, err
	}

	pm.UpdatedAt = s.clock.Now()
	if err := s.repos.PaymentManagers.Update(ctx, pm, expected); err != nil {
		return nil, storageErr(err)
	}
	return pm, nil
}

// GetPaymentManager retrieves a payment manager by ID.
func (s *PaymentService) GetPaymentManager(ctx context.Context, id solana.PublicKey) (*domain.PaymentManager, error) {
	pm, err := s.repos.PaymentManagers.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return pm, nil
}

// ListPaymentManagers returns every payment manager.
func (s *PaymentService) ListPaymentManagers(ctx context.Context) ([]*domain.PaymentManager, error) {
	pms, err := s.repos.PaymentManagers.List(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	return pms, nil
}

// ============================================================================
// Mint Metadata
// ============================================================================

// RegisterMintRequest contains the royalty terms of a mint.
type RegisterMintRequest struct {
	Mint                 solana.PublicKey
	SellerFeeBasisPoints uint16
	Creators             []domain.Creator
}

// RegisterMint stores or replaces the royalty terms of a mint.
func (s *PaymentService) RegisterMint(ctx context.Context, req *RegisterMintRequest) (*domain.MintMetadata, error) {
	md := &domain.MintMetadata{
		Mint:                 req.Mint,
		SellerFeeBasisPoints: req.SellerFeeBasisPoints,
		Creators:             append([]domain.Creator(nil), req.Creators...),
		UpdatedAt:            s.clock.Now(),
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.Mint)
	defer unlock()

	existing, err := s.repos.MintMetadata.Get(ctx, req.Mint)
	switch {
	case err == nil:
		err = s.repos.MintMetadata.Update(ctx, md, existing.Version)
	case domain.IsDomainError(err, domain.ErrMintNotRegistered.Code):
		err = s.repos.MintMetadata.Create(ctx, md)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return md, nil
}

// GetMint retrieves the royalty terms of a mint.
func (s *PaymentService) GetMint(ctx context.Context, mint solana.PublicKey) (*domain.MintMetadata, error) {
	md, err := s.repos.MintMetadata.Get(ctx, mint)
	if err != nil {
		return nil, storageErr(err)
	}
	return md, nil
}

// ============================================================================
// Quote
// ============================================================================

// QuoteRequest prices a payment through a payment manager.
type QuoteRequest struct {
	PaymentManager solana.PublicKey
	// Mint is the asset whose royalties apply; optional.
	Mint   solana.PublicKey
	Amount uint64
}

// Quote computes the fee split of a payment without moving anything.
func (s *PaymentService) Quote(ctx context.Context, req *QuoteRequest) (*domain.FeeBreakdown, error) {
	pm, err := s.repos.PaymentManagers.Get(ctx, req.PaymentManager)
	if err != nil {
		return nil, storageErr(err)
	}
	var md *domain.MintMetadata
	if !req.Mint.IsZero() {
		if md, err = s.mintMetadata(ctx, req.Mint); err != nil {
			return nil, err
		}
	}
	return fees.Compute(req.Amount, fees.ConfigFor(pm, md))
}

// ComputeFees runs the fee engine on explicit rates.
func (s *PaymentService) ComputeFees(amount uint64, cfg fees.Config) (*domain.FeeBreakdown, error) {
	return fees.Compute(amount, cfg)
}

func setKey(dst *solana.PublicKey, v *solana.PublicKey) {
	if v != nil && !v.IsZero() {
		*dst = *v
	}
}

func setU16(dst *uint16, v *uint16) {
	if v != nil {
		*dst = *v
	}
}
