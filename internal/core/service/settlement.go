package service

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

// storageErr passes domain errors through and wraps anything else.
func storageErr(err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStorageError.WithCause(err)
}

func custodyErr(err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrCustody.WithCause(err)
}

// ============================================================================
// Transition Commit
// ============================================================================

// step is one record write of a transition and the write that undoes it.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// commit runs a transition: custody ops first as one atomic batch, then
// the record writes in order. When a write fails the earlier writes are
// undone and the custody batch is compensated with its inverse.
func (b *base) commit(ctx context.Context, ops []domain.CustodyOp, steps ...step) error {
	if err := b.custody.Execute(ctx, ops); err != nil {
		return custodyErr(err)
	}
	for i, st := range steps {
		if err := st.do(ctx); err != nil {
			b.rollback(ctx, ops, steps[:i], st.name, err)
			return storageErr(err)
		}
	}
	return nil
}

func (b *base) rollback(ctx context.Context, ops []domain.CustodyOp, done []step, failed string, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].undo == nil {
			continue
		}
		if err := done[i].undo(ctx); err != nil {
			b.logger.Error("undo record write failed", "step", done[i].name, "error", err)
		}
	}
	if len(ops) == 0 {
		return
	}
	if err := b.custody.Execute(ctx, domain.InverseOps(ops)); err != nil {
		b.logger.Error("custody compensation failed",
			"step", failed, "ops", len(ops), "cause", cause, "error", err)
		return
	}
	b.logger.Warn("transition rolled back", "step", failed, "cause", cause)
}

// updateManager writes tm over the version it was read at.
func (b *base) updateManager(tm *domain.TokenManager, before *domain.TokenManager) step {
	expected := before.Version
	return step{
		name: "token_manager",
		do: func(ctx context.Context) error {
			tm.UpdatedAt = b.clock.Now()
			return b.repos.TokenManagers.Update(ctx, tm, expected)
		},
		undo: func(ctx context.Context) error {
			prev := before.Clone()
			return b.repos.TokenManagers.Update(ctx, prev, tm.Version)
		},
	}
}

// deleteListing drops the listing of a manager; a missing listing is fine.
func (b *base) deleteListing(id solana.PublicKey, before *domain.Listing) step {
	return step{
		name: "listing",
		do: func(ctx context.Context) error {
			err := b.repos.Listings.Delete(ctx, id)
			if errors.Is(err, domain.ErrListingNotFound) {
				return nil
			}
			return err
		},
		undo: func(ctx context.Context) error {
			if before == nil {
				return nil
			}
			prev := before.Clone()
			prev.Version = 0
			return b.repos.Listings.Create(ctx, prev)
		},
	}
}

// receipt records a committed transition and hands it to the observer.
func (b *base) receipt(op domain.Operation, tm *domain.TokenManager, ops []domain.CustodyOp, fb *domain.FeeBreakdown) *domain.Receipt {
	return b.emit(&domain.Receipt{
		Operation:    op,
		TokenManager: tm.ID,
		State:        tm.State,
		CustodyOps:   ops,
		Fees:         fb,
	})
}

func (b *base) emit(r *domain.Receipt) *domain.Receipt {
	r.ID = ulid.Make().String()
	r.At = b.clock.Now()
	b.obs.Observe(r)
	return r
}

// ============================================================================
// Payments
// ============================================================================

// payment is one value transfer routed through a payment manager.
type payment struct {
	// manager is the payment manager; zero means no fees.
	manager solana.PublicKey
	// mint is the currency paid in.
	mint solana.PublicKey
	// asset is the mint whose royalties apply.
	asset  solana.PublicKey
	amount uint64
	party  fees.Party
}

// settle prices a payment and returns the transfers that carry it out.
func (b *base) settle(ctx context.Context, p payment) (*domain.FeeBreakdown, []domain.CustodyOp, error) {
	if p.amount == 0 {
		return nil, nil, nil
	}
	if p.party.Payer.IsZero() {
		return nil, nil, domain.ErrPaymentRequired
	}

	var cfg fees.Config
	if !p.manager.IsZero() {
		pm, err := b.repos.PaymentManagers.Get(ctx, p.manager)
		if err != nil {
			return nil, nil, storageErr(err)
		}
		md, err := b.mintMetadata(ctx, p.asset)
		if err != nil {
			return nil, nil, err
		}
		cfg = fees.ConfigFor(pm, md)
		p.party.FeeCollector = pm.FeeCollector
	}

	breakdown, err := fees.Compute(p.amount, cfg)
	if err != nil {
		return nil, nil, err
	}

	// The ledger rejects transfers to self; a payer paying itself is a no-op.
	ops := fees.Transfers(breakdown, p.mint, p.party)
	out := ops[:0]
	for _, op := range ops {
		if !op.Owner.Equals(op.To) {
			out = append(out, op)
		}
	}
	return breakdown, out, nil
}

// mintMetadata loads royalty terms; an unregistered mint has none.
func (b *base) mintMetadata(ctx context.Context, mint solana.PublicKey) (*domain.MintMetadata, error) {
	md, err := b.repos.MintMetadata.Get(ctx, mint)
	if errors.Is(err, domain.ErrMintNotRegistered) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return md, nil
}

// ============================================================================
// Custody Instructions
// ============================================================================

// transfer moves the asset between owners; nil when both are the same.
func transfer(tm *domain.TokenManager, from, to solana.PublicKey) []domain.CustodyOp {
	if from.Equals(to) {
		return nil
	}
	return []domain.CustodyOp{domain.Transfer(tm.Mint, from, to, tm.Amount)}
}

// lockOps applies the kind's custody to a new holder account.
func lockOps(tm *domain.TokenManager, holder solana.PublicKey) []domain.CustodyOp {
	var ops []domain.CustodyOp
	if tm.Kind.Delegates() {
		ops = append(ops, domain.Delegate(tm.Mint, holder, tm.ID, tm.Amount))
	}
	if tm.Kind.Freezes() {
		ops = append(ops, domain.Freeze(tm.Mint, holder))
	}
	return ops
}

// releaseOps relaxes custody of the current holder: thaw, then revoke the
// manager's delegation (kind or listing).
func releaseOps(tm *domain.TokenManager) []domain.CustodyOp {
	holder := *tm.Recipient
	var ops []domain.CustodyOp
	if tm.Kind.Freezes() {
		ops = append(ops, domain.Thaw(tm.Mint, holder))
	}
	if tm.Kind.Delegates() || tm.Listed {
		ops = append(ops, domain.Undelegate(tm.Mint, holder, tm.ID, tm.Amount))
	}
	return ops
}

// listOps delegates the holder account to the manager for a sale. Edition
// accounts are delegated already.
func listOps(tm *domain.TokenManager) []domain.CustodyOp {
	if tm.Kind.Delegates() {
		return nil
	}
	holder := *tm.Recipient
	var ops []domain.CustodyOp
	if tm.Kind.Freezes() {
		ops = append(ops, domain.Thaw(tm.Mint, holder))
	}
	ops = append(ops, domain.Delegate(tm.Mint, holder, tm.ID, tm.Amount))
	if tm.Kind.Freezes() {
		ops = append(ops, domain.Freeze(tm.Mint, holder))
	}
	return ops
}

// unlistOps reverses listOps.
func unlistOps(tm *domain.TokenManager) []domain.CustodyOp {
	return domain.InverseOps(listOps(tm))
}

// invalidationOps moves the asset as outcome requires.
//
//	issued:  escrow -> issuer
//	return:  release, holder -> issuer
//	seize:   release, holder -> escrow
//	release: release
//	reissue: release, holder -> escrow
func invalidationOps(tm *domain.TokenManager, outcome domain.Outcome) []domain.CustodyOp {
	if tm.State != domain.StateClaimed {
		return transfer(tm, tm.ID, tm.Issuer)
	}
	holder := *tm.Recipient
	ops := releaseOps(tm)
	switch outcome {
	case domain.OutcomeReturn:
		ops = append(ops, transfer(tm, holder, tm.Issuer)...)
	case domain.OutcomeSeize, domain.OutcomeReissue:
		ops = append(ops, transfer(tm, holder, tm.ID)...)
	}
	return ops
}
