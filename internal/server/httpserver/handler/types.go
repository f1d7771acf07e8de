package handler

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ============================================================================
// Token managers
// ============================================================================

// ClaimApproverRequest selects the claim gate of a new token manager.
type ClaimApproverRequest struct {
	Identity   *solana.PublicKey    `json:"identity,omitempty"`
	Credential bool                 `json:"credential,omitempty"`
	Payment    *domain.PaymentTerms `json:"payment,omitempty"`
}

// IssueRequest is the request body for POST /v1/token-managers.
// Kind defaults to unmanaged and the invalidation type to return.
type IssueRequest struct {
	Mint               solana.PublicKey         `json:"mint"`
	Amount             uint64                   `json:"amount"`
	Kind               *domain.Kind             `json:"kind,omitempty"`
	InvalidationType   *domain.InvalidationType `json:"invalidation_type,omitempty"`
	ClaimApprover      *ClaimApproverRequest    `json:"claim_approver,omitempty"`
	TimeInvalidator    *domain.TimeInvalidator  `json:"time_invalidator,omitempty"`
	UseInvalidator     *domain.UseInvalidator   `json:"use_invalidator,omitempty"`
	CustomInvalidators []solana.PublicKey       `json:"custom_invalidators,omitempty"`
}

// IssueResponse is the response body for POST /v1/token-managers.
type IssueResponse struct {
	TokenManager *domain.TokenManager `json:"token_manager"`
	Receipt      *domain.Receipt      `json:"receipt"`
	// ClaimSecret is shown once.
	ClaimSecret string `json:"claim_secret,omitempty"`
}

// TransitionResponse is the response body of every token manager transition.
type TransitionResponse struct {
	TokenManager *domain.TokenManager `json:"token_manager,omitempty"`
	Receipt      *domain.Receipt      `json:"receipt,omitempty"`
}

// EvaluateResponse is the response body for POST /v1/token-managers/{id}/evaluate.
type EvaluateResponse struct {
	Fired        bool                 `json:"fired"`
	TokenManager *domain.TokenManager `json:"token_manager,omitempty"`
	Receipt      *domain.Receipt      `json:"receipt,omitempty"`
}

// ClaimRequest is the request body for POST /v1/token-managers/{id}/claim.
// The caller is the recipient; Payer defaults to the caller.
type ClaimRequest struct {
	Secret string            `json:"secret,omitempty"`
	Payer  *solana.PublicKey `json:"payer,omitempty"`
}

// UseRequest is the request body for POST /v1/token-managers/{id}/use.
type UseRequest struct {
	Usages uint64 `json:"usages"`
}

// ExtendTimeRequest is the request body for POST /v1/token-managers/{id}/extend-time.
type ExtendTimeRequest struct {
	Seconds uint64 `json:"seconds"`
}

// ExtendUsagesRequest is the request body for POST /v1/token-managers/{id}/extend-usages.
type ExtendUsagesRequest struct {
	Usages uint64 `json:"usages"`
}

// InvalidationTypeRequest is the request body for POST /v1/token-managers/{id}/invalidation-type.
type InvalidationTypeRequest struct {
	InvalidationType domain.InvalidationType `json:"invalidation_type"`
}

// ReplaceInvalidatorRequest is the request body for POST /v1/token-managers/{id}/invalidators/replace.
type ReplaceInvalidatorRequest struct {
	NewInvalidator solana.PublicKey `json:"new_invalidator"`
}

// MaxExpirationRequest is the request body for POST /v1/token-managers/{id}/max-expiration.
type MaxExpirationRequest struct {
	MaxExpiration int64 `json:"max_expiration"`
}

// ListTokenManagersResponse is the response body for GET /v1/token-managers.
type ListTokenManagersResponse struct {
	Items []*domain.TokenManager `json:"items"`
	Total int                    `json:"total"`
}

// ============================================================================
// Fees, payment managers and mints
// ============================================================================

// QuoteRequest is the request body for POST /v1/fees/quote.
type QuoteRequest struct {
	PaymentManager solana.PublicKey `json:"payment_manager"`
	Mint           solana.PublicKey `json:"mint,omitempty"`
	Amount         uint64           `json:"amount"`
}

// CreatePaymentManagerRequest is the request body for POST /v1/payment-managers.
// The caller becomes the authority.
type CreatePaymentManagerRequest struct {
	Name                        string           `json:"name"`
	FeeCollector                solana.PublicKey `json:"fee_collector,omitempty"`
	MakerFeeBasisPoints         uint16           `json:"maker_fee_basis_points"`
	TakerFeeBasisPoints         uint16           `json:"taker_fee_basis_points"`
	IncludeSellerFeeBasisPoints bool             `json:"include_seller_fee_basis_points"`
	RoyaltyFeeShare             uint16           `json:"royalty_fee_share"`
	BuySideFeeShare             uint16           `json:"buy_side_fee_share"`
}

// UpdatePaymentManagerRequest is the request body for POST /v1/payment-managers/{id}.
type UpdatePaymentManagerRequest struct {
	NewAuthority                *solana.PublicKey `json:"new_authority,omitempty"`
	FeeCollector                *solana.PublicKey `json:"fee_collector,omitempty"`
	MakerFeeBasisPoints         *uint16           `json:"maker_fee_basis_points,omitempty"`
	TakerFeeBasisPoints         *uint16           `json:"taker_fee_basis_points,omitempty"`
	IncludeSellerFeeBasisPoints *bool             `json:"include_seller_fee_basis_points,omitempty"`
	RoyaltyFeeShare             *uint16           `json:"royalty_fee_share,omitempty"`
	BuySideFeeShare             *uint16           `json:"buy_side_fee_share,omitempty"`
}

// RegisterMintRequest is the request body for POST /v1/mints.
type RegisterMintRequest struct {
	Mint                 solana.PublicKey `json:"mint"`
	SellerFeeBasisPoints uint16           `json:"seller_fee_basis_points"`
	Creators             []domain.Creator `json:"creators,omitempty"`
}

// ============================================================================
// Marketplaces and listings
// ============================================================================

// CreateMarketplaceRequest is the request body for POST /v1/marketplaces.
// The caller becomes the authority.
type CreateMarketplaceRequest struct {
	Name           string             `json:"name"`
	PaymentManager solana.PublicKey   `json:"payment_manager"`
	PaymentMints   []solana.PublicKey `json:"payment_mints,omitempty"`
}

// UpdateMarketplaceRequest is the request body for POST /v1/marketplaces/{id}.
type UpdateMarketplaceRequest struct {
	NewAuthority   *solana.PublicKey   `json:"new_authority,omitempty"`
	PaymentManager *solana.PublicKey   `json:"payment_manager,omitempty"`
	PaymentMints   *[]solana.PublicKey `json:"payment_mints,omitempty"`
}

// CreateListingRequest is the request body for POST /v1/listings.
// The caller is the lister.
type CreateListingRequest struct {
	TokenManager  solana.PublicKey `json:"token_manager"`
	Marketplace   solana.PublicKey `json:"marketplace"`
	PaymentAmount uint64           `json:"payment_amount"`
	PaymentMint   solana.PublicKey `json:"payment_mint"`
}

// UpdateListingRequest is the request body for POST /v1/listings/{id}.
type UpdateListingRequest struct {
	PaymentAmount uint64            `json:"payment_amount"`
	PaymentMint   *solana.PublicKey `json:"payment_mint,omitempty"`
	Marketplace   *solana.PublicKey `json:"marketplace,omitempty"`
}

// AcceptListingRequest is the request body for POST /v1/listings/{id}/accept.
// The caller is the buyer.
type AcceptListingRequest struct {
	PaymentAmount   *uint64          `json:"payment_amount,omitempty"`
	BuySideReceiver solana.PublicKey `json:"buy_side_receiver,omitempty"`
}

// ListingResponse is the response body of listing transitions.
type ListingResponse struct {
	Listing      *domain.Listing      `json:"listing,omitempty"`
	TokenManager *domain.TokenManager `json:"token_manager,omitempty"`
	Receipt      *domain.Receipt      `json:"receipt,omitempty"`
}

// ListListingsResponse is the response body for GET /v1/listings.
type ListListingsResponse struct {
	Items []*domain.Listing `json:"items"`
	Total int               `json:"total"`
}

// ============================================================================
// Ledger
// ============================================================================

// MintRequest is the request body for POST /admin/v1/ledger/mint.
type MintRequest struct {
	Mint   solana.PublicKey `json:"mint"`
	Owner  solana.PublicKey `json:"owner"`
	Amount uint64           `json:"amount"`
}

// MintAuthorityRequest is the request body for POST /admin/v1/ledger/mint-authority.
type MintAuthorityRequest struct {
	Mint    solana.PublicKey `json:"mint"`
	Granted bool             `json:"granted"`
}
