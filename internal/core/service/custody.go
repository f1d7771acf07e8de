package service

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

// CustodyService drives the token manager state machine.
//
// Every transition runs under the manager's lock, executes its custody
// instructions as one batch and then writes the record at the version it
// was read. A failed write is compensated, so a transition either fully
// commits or leaves no trace.
type CustodyService struct {
	*base
}

// ============================================================================
// Issue
// ============================================================================

// ClaimApproverRequest selects at most one claim gate.
type ClaimApproverRequest struct {
	// Identity restricts claiming to one recipient.
	Identity *solana.PublicKey
	// Credential generates a one-time claim secret.
	Credential bool
	// Payment prices the claim.
	Payment *domain.PaymentTerms
}

// IssueRequest contains parameters for issuing a token manager.
type IssueRequest struct {
	Issuer             solana.PublicKey // Required
	Mint               solana.PublicKey // Required
	Amount             uint64           // Required, > 0
	Kind               domain.Kind
	InvalidationType   domain.InvalidationType
	ClaimApprover      *ClaimApproverRequest
	TimeInvalidator    *domain.TimeInvalidator
	UseInvalidator     *domain.UseInvalidator
	CustomInvalidators []solana.PublicKey
}

// IssueResponse contains the result of an issue.
type IssueResponse struct {
	TokenManager *domain.TokenManager
	Receipt      *domain.Receipt
	// ClaimSecret is the plaintext one-time credential, returned only here.
	ClaimSecret string
}

// Issue escrows the asset under a new token manager.
func (s *CustodyService) Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	// 1. Derive the manager identity from the mint
	if req.Mint.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("mint is required")
	}
	id, bump, err := domain.TokenManagerAddress(req.Mint)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	tm := &domain.TokenManager{
		ID:               id,
		Bump:             bump,
		Kind:             req.Kind,
		State:            domain.StateIssued,
		InvalidationType: req.InvalidationType,
		Amount:           req.Amount,
		Mint:             req.Mint,
		Issuer:           req.Issuer,
		StateChangedAt:   now,
		IssuedAt:         now,
		UpdatedAt:        now,
	}

	// 2. Attach policies
	secret, err := attachApprover(tm, req.ClaimApprover)
	if err != nil {
		return nil, err
	}
	if err := attachInvalidators(tm, req, now); err != nil {
		return nil, err
	}
	if err := tm.Validate(); err != nil {
		return nil, err
	}

	// 3. Managed kinds need a delegated mint authority
	if tm.Kind.RequiresMintAuthority() {
		ok, err := s.custody.HasMintAuthority(ctx, tm.Mint)
		if err != nil {
			return nil, custodyErr(err)
		}
		if !ok {
			return nil, domain.ErrMissingMintAuthority.WithDetailsf("mint %s", tm.Mint)
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	// 4. Reject a live manager for the same mint before moving assets
	if _, err := s.repos.TokenManagers.Get(ctx, id); err == nil {
		return nil, domain.ErrTokenManagerConflict.WithDetailsf("mint %s", tm.Mint)
	} else if !errors.Is(err, domain.ErrTokenManagerNotFound) {
		return nil, storageErr(err)
	}

	// 5. Escrow and persist
	ops := transfer(tm, tm.Issuer, tm.ID)
	create := step{
		name: "token_manager",
		do:   func(ctx context.Context) error { return s.repos.TokenManagers.Create(ctx, tm) },
	}
	if err := s.commit(ctx, ops, create); err != nil {
		return nil, err
	}

	return &IssueResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationIssue, tm, ops, nil),
		ClaimSecret:  secret,
	}, nil
}

func attachApprover(tm *domain.TokenManager, req *ClaimApproverRequest) (string, error) {
	if req == nil {
		return "", nil
	}
	set := 0
	if req.Identity != nil {
		set++
	}
	if req.Credential {
		set++
	}
	if req.Payment != nil {
		set++
	}
	if set != 1 {
		return "", domain.ErrInvalidPolicy.WithDetails("claim approver needs exactly one of identity, credential or payment")
	}

	switch {
	case req.Identity != nil:
		id := *req.Identity
		tm.ClaimApprover = &domain.ClaimApprover{Kind: domain.ApproverIdentity, Identity: &id}
	case req.Credential:
		secret, hash, err := domain.GenerateCredential()
		if err != nil {
			return "", err
		}
		tm.ClaimApprover = &domain.ClaimApprover{Kind: domain.ApproverCredential, CredentialHash: hash}
		return secret, nil
	default:
		terms := *req.Payment
		tm.ClaimApprover = &domain.ClaimApprover{Kind: domain.ApproverPayment, Payment: &terms}
	}
	return "", nil
}

func attachInvalidators(tm *domain.TokenManager, req *IssueRequest, now int64) error {
	var refs []solana.PublicKey

	if req.UseInvalidator != nil {
		ui := req.UseInvalidator.Clone()
		ui.Usages = 0
		tm.UseInvalidator = ui
		addr, err := domain.UseInvalidatorAddress(tm.ID)
		if err != nil {
			return err
		}
		refs = append(refs, addr)
	}

	if req.TimeInvalidator != nil {
		ti := req.TimeInvalidator.Clone()
		if ti.MaxExpiration != nil && *ti.MaxExpiration <= now {
			return domain.ErrInvalidMaxExpiration.WithDetails("max expiration already passed")
		}
		tm.TimeInvalidator = ti
		addr, err := domain.TimeInvalidatorAddress(tm.ID)
		if err != nil {
			return err
		}
		refs = append(refs, addr)
	}

	for _, id := range req.CustomInvalidators {
		if id.IsZero() {
			return domain.ErrInvalidArgument.WithDetails("custom invalidator identity is zero")
		}
		tm.CustomInvalidators = append(tm.CustomInvalidators, domain.CustomInvalidator{Identity: id})
		refs = append(refs, id)
	}

	tm.SetInvalidators(refs)
	return nil
}

// ============================================================================
// Claim
// ============================================================================

// ClaimRequest contains parameters for claiming a token manager.
type ClaimRequest struct {
	ID        solana.PublicKey // Required
	Recipient solana.PublicKey // Required
	Secret    string           // One-time credential, if gated by one
	Payer     *solana.PublicKey
}

// TransitionResponse is returned by every token manager transition.
type TransitionResponse struct {
	TokenManager *domain.TokenManager
	Receipt      *domain.Receipt
}

// Claim hands the asset to the recipient, settling the claim price in the
// same transition when the approver asks for payment.
func (s *CustodyService) Claim(ctx context.Context, req *ClaimRequest) (*TransitionResponse, error) {
	// 1. Validate required fields
	if req.Recipient.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("recipient is required")
	}

	unlock := s.locks.Lock(req.ID)
	defer unlock()

	// 2. Load and check state
	tm, err := s.repos.TokenManagers.Get(ctx, req.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := tm.Check(domain.OperationClaim); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if t, fired := tm.Evaluate(now); fired {
		return nil, domain.ErrInvalidState.WithDetailsf("%s policy fired (%s), manager awaits invalidation", t.Policy, t.Reason)
	}

	// 3. Authorize against the claim approver
	var (
		breakdown *domain.FeeBreakdown
		ops       []domain.CustodyOp
	)
	if ca := tm.ClaimApprover; ca != nil {
		if err := ca.Authorize(req.Recipient, req.Secret); err != nil {
			return nil, err
		}
		if ca.Kind == domain.ApproverPayment {
			payer := req.Recipient
			if req.Payer != nil {
				payer = *req.Payer
			}
			breakdown, ops, err = s.settle(ctx, payment{
				manager: ca.Payment.PaymentManager,
				mint:    ca.Payment.PaymentMint,
				asset:   tm.Mint,
				amount:  ca.Payment.PaymentAmount,
				party:   fees.Party{Payer: payer, Payee: tm.Issuer},
			})
			if err != nil {
				return nil, err
			}
		}
	}

	// 4. Move the asset and lock it in the recipient's account
	ops = append(ops, transfer(tm, tm.ID, req.Recipient)...)
	ops = append(ops, lockOps(tm, req.Recipient)...)

	before := tm.Clone()
	tm.MarkClaimed(req.Recipient, now)
	if err := s.commit(ctx, ops, s.updateManager(tm, before)); err != nil {
		return nil, err
	}

	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationClaim, tm, ops, breakdown),
	}, nil
}

// ============================================================================
// Queries
// ============================================================================

// Get retrieves a token manager by ID.
func (s *CustodyService) Get(ctx context.Context, id solana.PublicKey) (*domain.TokenManager, error) {
	tm, err := s.repos.TokenManagers.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return tm, nil
}

// List returns token managers matching filter.
func (s *CustodyService) List(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error) {
	tms, err := s.repos.TokenManagers.Find(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return tms, nil
}
