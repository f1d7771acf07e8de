package service

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

// load reads a token manager and checks op is legal from its state.
// Callers hold the manager's lock.
func (s *CustodyService) load(ctx context.Context, id solana.PublicKey, op domain.Operation) (*domain.TokenManager, error) {
	tm, err := s.repos.TokenManagers.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := tm.Check(op); err != nil {
		return nil, err
	}
	return tm, nil
}

// ============================================================================
// Use
// ============================================================================

// UseRequest contains parameters for recording usages.
type UseRequest struct {
	ID     solana.PublicKey
	Caller solana.PublicKey
	Usages uint64
}

// Use records usages. When the increment exhausts the use policy the
// manager is invalidated in the same transition.
func (s *CustodyService) Use(ctx context.Context, req *UseRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	// 1. Load and check state
	tm, err := s.load(ctx, req.ID, domain.OperationUse)
	if err != nil {
		return nil, err
	}
	ui := tm.UseInvalidator
	if ui == nil {
		return nil, domain.ErrInvalidPolicy.WithDetails("token manager has no use invalidator")
	}
	if !ui.CanUse(req.Caller, tm.Recipient) {
		return nil, domain.ErrUnauthorized.WithDetails("caller is neither the recipient nor the use authority")
	}

	// 2. Count
	before := tm.Clone()
	if err := ui.Increment(req.Usages); err != nil {
		return nil, err
	}

	// 3. Exhausted: invalidate now
	if t, fired := ui.Evaluate(tm, s.clock.Now()); fired {
		t.Actor = &req.Caller
		return s.invalidate(ctx, before, tm, t, domain.OperationUse)
	}

	if err := s.commit(ctx, nil, s.updateManager(tm, before)); err != nil {
		return nil, err
	}
	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationUse, tm, nil, nil),
	}, nil
}

// ============================================================================
// Extensions
// ============================================================================

// ExtendTimeRequest contains parameters for buying more time.
type ExtendTimeRequest struct {
	ID      solana.PublicKey
	Payer   solana.PublicKey
	Seconds uint64
}

// ExtendTime pushes the expiration out by seconds, paying the issuer
// through the extension's payment manager in the same transition.
func (s *CustodyService) ExtendTime(ctx context.Context, req *ExtendTimeRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	tm, err := s.load(ctx, req.ID, domain.OperationExtendTime)
	if err != nil {
		return nil, err
	}
	ti := tm.TimeInvalidator
	if ti == nil {
		return nil, domain.ErrExtensionNotConfigured.WithDetails("token manager has no time invalidator")
	}
	if err := s.checkLive(tm); err != nil {
		return nil, err
	}

	// 1. Price the extension
	price, expiration, err := ti.Extend(tm.StateChangedAt, req.Seconds)
	if err != nil {
		return nil, err
	}

	// 2. Settle the payment
	ext := ti.Extension
	breakdown, ops, err := s.settle(ctx, payment{
		manager: ext.PaymentManager,
		mint:    ext.PaymentMint,
		asset:   tm.Mint,
		amount:  price,
		party:   fees.Party{Payer: req.Payer, Payee: tm.Issuer},
	})
	if err != nil {
		return nil, err
	}

	// 3. Apply with the payment
	before := tm.Clone()
	ti.Expiration = &expiration
	if err := s.commit(ctx, ops, s.updateManager(tm, before)); err != nil {
		return nil, err
	}
	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationExtendTime, tm, ops, breakdown),
	}, nil
}

// ExtendUsagesRequest contains parameters for buying more usages.
type ExtendUsagesRequest struct {
	ID     solana.PublicKey
	Payer  solana.PublicKey
	Usages uint64
}

// ExtendUsages raises the total usages, paying the issuer in the same
// transition.
func (s *CustodyService) ExtendUsages(ctx context.Context, req *ExtendUsagesRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	tm, err := s.load(ctx, req.ID, domain.OperationExtendUsages)
	if err != nil {
		return nil, err
	}
	ui := tm.UseInvalidator
	if ui == nil {
		return nil, domain.ErrExtensionNotConfigured.WithDetails("token manager has no use invalidator")
	}
	if err := s.checkLive(tm); err != nil {
		return nil, err
	}

	price, total, err := ui.Extend(req.Usages)
	if err != nil {
		return nil, err
	}

	ext := ui.Extension
	breakdown, ops, err := s.settle(ctx, payment{
		manager: ext.PaymentManager,
		mint:    ext.PaymentMint,
		asset:   tm.Mint,
		amount:  price,
		party:   fees.Party{Payer: req.Payer, Payee: tm.Issuer},
	})
	if err != nil {
		return nil, err
	}

	before := tm.Clone()
	ui.TotalUsages = &total
	if err := s.commit(ctx, ops, s.updateManager(tm, before)); err != nil {
		return nil, err
	}
	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationExtendUsages, tm, ops, breakdown),
	}, nil
}

// checkLive rejects changes to a manager whose policy already fired but
// has not been evaluated yet.
func (b *base) checkLive(tm *domain.TokenManager) error {
	if t, fired := tm.Evaluate(b.clock.Now()); fired {
		return domain.ErrInvalidState.WithDetailsf("%s policy fired (%s), manager awaits invalidation", t.Policy, t.Reason)
	}
	return nil
}

// ============================================================================
// Invalidation
// ============================================================================

// InvalidateRequest contains parameters for a direct invalidation.
type InvalidateRequest struct {
	ID     solana.PublicKey
	Caller solana.PublicKey
}

// Invalidate ends custody on behalf of an invalidator identity, or of the
// recipient returning the asset early under Return or Reissue.
func (s *CustodyService) Invalidate(ctx context.Context, req *InvalidateRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	tm, err := s.load(ctx, req.ID, domain.OperationInvalidate)
	if err != nil {
		return nil, err
	}

	caller := req.Caller
	var t domain.Trigger
	switch {
	case tm.IsInvalidator(caller):
		t = domain.ManualTrigger(caller)
	case tm.State == domain.StateClaimed && tm.IsRecipient(caller) &&
		(tm.InvalidationType == domain.InvalidationReturn || tm.InvalidationType == domain.InvalidationReissue):
		t = domain.Trigger{Reason: domain.ReasonSelfReturn, Actor: &caller}
	default:
		return nil, domain.ErrUnauthorized.WithDetails("caller may not invalidate this token manager")
	}

	// A fired terminal condition wins over the manual request.
	if fired, ok := tm.Evaluate(s.clock.Now()); ok && fired.Final {
		fired.Actor = &caller
		t = fired
	}
	return s.invalidate(ctx, tm.Clone(), tm, t, domain.OperationInvalidate)
}

// EvaluateResponse is the result of a policy evaluation.
type EvaluateResponse struct {
	Fired        bool
	TokenManager *domain.TokenManager
	Receipt      *domain.Receipt
}

// Evaluate runs the manager's policies and invalidates it when one fires.
// It needs no authority.
func (s *CustodyService) Evaluate(ctx context.Context, id solana.PublicKey) (*EvaluateResponse, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tm, err := s.load(ctx, id, domain.OperationEvaluate)
	if err != nil {
		return nil, err
	}
	t, fired := tm.Evaluate(s.clock.Now())
	if !fired {
		return &EvaluateResponse{TokenManager: tm}, nil
	}

	resp, err := s.invalidate(ctx, tm.Clone(), tm, t, domain.OperationEvaluate)
	if err != nil {
		return nil, err
	}
	return &EvaluateResponse{Fired: true, TokenManager: resp.TokenManager, Receipt: resp.Receipt}, nil
}

// invalidate resolves t to an outcome, moves the asset and writes tm.
// before is the record as it was read.
func (s *CustodyService) invalidate(ctx context.Context, before, tm *domain.TokenManager, t domain.Trigger, op domain.Operation) (*TransitionResponse, error) {
	outcome := tm.Resolve(t)
	ops := invalidationOps(tm, outcome)

	// A listed manager loses its listing with the custody.
	var steps []step
	if tm.Listed {
		st, err := s.dropListing(ctx, tm.ID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}

	now := s.clock.Now()
	if outcome == domain.OutcomeReissue {
		tm.MarkReissued(now)
	} else {
		tm.MarkInvalidated(now)
	}
	steps = append([]step{s.updateManager(tm, before)}, steps...)

	if err := s.commit(ctx, ops, steps...); err != nil {
		return nil, err
	}

	s.logger.Info("token manager invalidated",
		"token_manager", tm.ID.String(),
		"reason", string(t.Reason),
		"outcome", string(outcome),
		"state", tm.State.String())

	r := s.emit(&domain.Receipt{
		Operation:    op,
		TokenManager: tm.ID,
		State:        tm.State,
		Trigger:      &t,
		Outcome:      outcome,
		CustodyOps:   ops,
	})
	return &TransitionResponse{TokenManager: tm, Receipt: r}, nil
}

func (s *CustodyService) dropListing(ctx context.Context, tmID solana.PublicKey) (step, error) {
	id, _, err := domain.ListingAddress(tmID)
	if err != nil {
		return step{}, err
	}
	listing, err := s.repos.Listings.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrListingNotFound) {
		return step{}, storageErr(err)
	}
	return s.deleteListing(id, listing), nil
}

// ============================================================================
// Unissue and Close
// ============================================================================

// UnissueRequest contains parameters for cancelling an unclaimed issue.
type UnissueRequest struct {
	ID     solana.PublicKey
	Issuer solana.PublicKey
}

// Unissue returns the escrowed asset to the issuer and removes the record.
// Only an unclaimed manager can be unissued.
func (s *CustodyService) Unissue(ctx context.Context, req *UnissueRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	tm, err := s.load(ctx, req.ID, domain.OperationUnissue)
	if err != nil {
		return nil, err
	}
	if !tm.Issuer.Equals(req.Issuer) {
		return nil, domain.ErrUnauthorized.WithDetails("only the issuer may unissue")
	}

	ops := transfer(tm, tm.ID, tm.Issuer)
	before := tm.Clone()
	tm.MarkInvalidated(s.clock.Now())
	if err := s.commit(ctx, ops, s.removeManager(before)); err != nil {
		return nil, err
	}

	t := domain.Trigger{Reason: domain.ReasonUnissue, Actor: &req.Issuer}
	r := s.emit(&domain.Receipt{
		Operation:    domain.OperationUnissue,
		TokenManager: tm.ID,
		State:        tm.State,
		Trigger:      &t,
		Outcome:      domain.OutcomeReturn,
		CustodyOps:   ops,
	})
	return &TransitionResponse{TokenManager: tm, Receipt: r}, nil
}

// CloseRequest contains parameters for closing a terminal record.
type CloseRequest struct {
	ID     solana.PublicKey
	Caller solana.PublicKey
}

// Close reclaims a terminal record. The issuer or an invalidator may close.
func (s *CustodyService) Close(ctx context.Context, req *CloseRequest) (*TransitionResponse, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	tm, err := s.load(ctx, req.ID, domain.OperationClose)
	if err != nil {
		return nil, err
	}
	if !tm.Issuer.Equals(req.Caller) && !tm.IsInvalidator(req.Caller) {
		return nil, domain.ErrUnauthorized.WithDetails("only the issuer or an invalidator may close")
	}

	if err := s.commit(ctx, nil, s.removeManager(tm)); err != nil {
		return nil, err
	}
	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationClose, tm, nil, nil),
	}, nil
}

func (s *CustodyService) removeManager(before *domain.TokenManager) step {
	return step{
		name: "token_manager",
		do: func(ctx context.Context) error {
			return s.repos.TokenManagers.Delete(ctx, before.ID)
		},
		undo: func(ctx context.Context) error {
			prev := before.Clone()
			prev.Version = 0
			return s.repos.TokenManagers.Create(ctx, prev)
		},
	}
}

// ============================================================================
// Record Updates
// ============================================================================

// UpdateInvalidationTypeRequest switches a manager between Return and Reissue.
type UpdateInvalidationTypeRequest struct {
	ID               solana.PublicKey
	Issuer           solana.PublicKey
	InvalidationType domain.InvalidationType
}

// UpdateInvalidationType changes the invalidation type. Only the issuer
// may do so and only between Return and Reissue.
func (s *CustodyService) UpdateInvalidationType(ctx context.Context, req *UpdateInvalidationTypeRequest) (*TransitionResponse, error) {
	return s.update(ctx, req.ID, func(tm *domain.TokenManager) error {
		if !tm.Issuer.Equals(req.Issuer) {
			return domain.ErrUnauthorized.WithDetails("only the issuer may change the invalidation type")
		}
		return tm.UpdateInvalidationType(req.InvalidationType)
	})
}

// ReplaceInvalidatorRequest hands an invalidator's right to a new identity.
type ReplaceInvalidatorRequest struct {
	ID             solana.PublicKey
	Caller         solana.PublicKey
	NewInvalidator solana.PublicKey
}

// ReplaceInvalidator lets an invalidator replace itself.
func (s *CustodyService) ReplaceInvalidator(ctx context.Context, req *ReplaceInvalidatorRequest) (*TransitionResponse, error) {
	return s.update(ctx, req.ID, func(tm *domain.TokenManager) error {
		return tm.ReplaceInvalidator(req.Caller, req.NewInvalidator)
	})
}

// UpdateMaxExpirationRequest moves a time policy's max expiration.
type UpdateMaxExpirationRequest struct {
	ID            solana.PublicKey
	Issuer        solana.PublicKey
	MaxExpiration int64
}

// UpdateMaxExpiration sets a new max expiration. A claimed manager cannot
// have it moved before its current expiration.
func (s *CustodyService) UpdateMaxExpiration(ctx context.Context, req *UpdateMaxExpirationRequest) (*TransitionResponse, error) {
	return s.update(ctx, req.ID, func(tm *domain.TokenManager) error {
		if !tm.Issuer.Equals(req.Issuer) {
			return domain.ErrUnauthorized.WithDetails("only the issuer may change the max expiration")
		}
		if tm.TimeInvalidator == nil {
			return domain.ErrInvalidPolicy.WithDetails("token manager has no time invalidator")
		}
		return tm.TimeInvalidator.UpdateMaxExpiration(tm.State, tm.StateChangedAt, req.MaxExpiration)
	})
}

func (s *CustodyService) update(ctx context.Context, id solana.PublicKey, apply func(tm *domain.TokenManager) error) (*TransitionResponse, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tm, err := s.load(ctx, id, domain.OperationUpdate)
	if err != nil {
		return nil, err
	}
	before := tm.Clone()
	if err := apply(tm); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, nil, s.updateManager(tm, before)); err != nil {
		return nil, err
	}
	return &TransitionResponse{
		TokenManager: tm,
		Receipt:      s.receipt(domain.OperationUpdate, tm, nil, nil),
	}, nil
}
