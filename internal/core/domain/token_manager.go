package domain

import "github.com/gagliardetto/solana-go"

// Operation names a token manager transition for the legality table.
type Operation string

const (
	OperationIssue        Operation = "issue"
	OperationClaim        Operation = "claim"
	OperationUse          Operation = "use"
	OperationExtendTime   Operation = "extend_time"
	OperationExtendUsages Operation = "extend_usages"
	OperationInvalidate   Operation = "invalidate"
	OperationUnissue      Operation = "unissue"
	OperationClose        Operation = "close"
	OperationUpdate       Operation = "update"
	OperationEvaluate     Operation = "evaluate"
	OperationListing      Operation = "listing"

	// Listing receipts.
	OperationCreateListing Operation = "create_listing"
	OperationRemoveListing Operation = "remove_listing"
	OperationAcceptListing Operation = "accept_listing"
)

// TokenManager is the custody record of one asset and its state machine.
//
// Invariants: Amount > 0; State == Claimed implies Recipient != nil;
// Invalidators is ordered and free of duplicates.
type TokenManager struct {
	ID               solana.PublicKey  `json:"id"`
	Bump             uint8             `json:"bump"`
	Kind             Kind              `json:"kind"`
	State            State             `json:"state"`
	InvalidationType InvalidationType  `json:"invalidation_type"`
	Amount           uint64            `json:"amount"`
	Mint             solana.PublicKey  `json:"mint"`
	Issuer           solana.PublicKey  `json:"issuer"`
	Recipient        *solana.PublicKey `json:"recipient,omitempty"`

	// Invalidators references every policy able to end custody: derived
	// addresses of the time and use policies plus custom identities.
	Invalidators []solana.PublicKey `json:"invalidators"`

	ClaimApprover      *ClaimApprover      `json:"claim_approver,omitempty"`
	TimeInvalidator    *TimeInvalidator    `json:"time_invalidator,omitempty"`
	UseInvalidator     *UseInvalidator     `json:"use_invalidator,omitempty"`
	CustomInvalidators []CustomInvalidator `json:"custom_invalidators,omitempty"`

	// Listed marks a claimed asset delegated to the manager for a sale.
	Listed bool `json:"listed,omitempty"`

	// Cycles counts completed claim cycles (incremented on reissue).
	Cycles uint64 `json:"cycles"`

	StateChangedAt int64  `json:"state_changed_at"`
	IssuedAt       int64  `json:"issued_at"`
	UpdatedAt      int64  `json:"updated_at"`
	Version        uint64 `json:"version"`
}

// GetVersion implements optimistic locking.
func (tm *TokenManager) GetVersion() uint64 { return tm.Version }

// SetVersion implements optimistic locking.
func (tm *TokenManager) SetVersion(v uint64) { tm.Version = v }

// IncrVersion bumps the version.
func (tm *TokenManager) IncrVersion() { tm.Version++ }

// Validate checks structural invariants.
func (tm *TokenManager) Validate() error {
	if tm.Amount == 0 {
		return ErrTokenManagerValidation.WithDetails("amount must be positive")
	}
	if tm.Mint.IsZero() {
		return ErrTokenManagerValidation.WithDetails("mint is required")
	}
	if tm.Issuer.IsZero() {
		return ErrTokenManagerValidation.WithDetails("issuer is required")
	}
	if _, ok := kindNames[tm.Kind]; !ok {
		return ErrTokenManagerValidation.WithDetails("unknown kind")
	}
	if _, ok := invalidationNames[tm.InvalidationType]; !ok {
		return ErrTokenManagerValidation.WithDetails("unknown invalidation type")
	}
	if tm.Kind == KindPermissioned && tm.InvalidationType != InvalidationRelease {
		return ErrTokenManagerValidation.WithDetails("permissioned managers must use release invalidation")
	}
	if tm.State == StateClaimed && tm.Recipient == nil {
		return ErrTokenManagerValidation.WithDetails("claimed manager without recipient")
	}
	if tm.ClaimApprover != nil {
		if err := tm.ClaimApprover.Validate(); err != nil {
			return err
		}
	}
	if tm.TimeInvalidator != nil {
		if err := tm.TimeInvalidator.Validate(); err != nil {
			return err
		}
	}
	if tm.UseInvalidator != nil {
		if err := tm.UseInvalidator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Check reports whether op is legal from the current state.
//
//	Issued:      claim, invalidate, unissue, update
//	Claimed:     use, extend_*, invalidate, update
//	Invalidated: close
func (tm *TokenManager) Check(op Operation) error {
	switch tm.State {
	case StateIssued:
		switch op {
		case OperationClaim, OperationInvalidate, OperationUnissue, OperationUpdate, OperationEvaluate:
			return nil
		case OperationUse:
			return ErrManagerNotClaimed
		}
	case StateClaimed:
		switch op {
		case OperationUse, OperationExtendTime, OperationExtendUsages, OperationInvalidate,
			OperationUpdate, OperationEvaluate, OperationListing:
			return nil
		case OperationClaim, OperationUnissue:
			return ErrAlreadyClaimed
		}
	case StateInvalidated:
		switch op {
		case OperationClose:
			return nil
		case OperationUse:
			return ErrManagerNotClaimed
		case OperationInvalidate, OperationEvaluate:
			return ErrAlreadyInvalidated
		}
	default:
		if op == OperationUse {
			return ErrManagerNotClaimed
		}
	}
	return ErrInvalidState.WithDetailsf("%s not allowed while %s", op, tm.State)
}

// IsInvalidator reports whether id may invalidate directly.
func (tm *TokenManager) IsInvalidator(id solana.PublicKey) bool {
	for _, inv := range tm.Invalidators {
		if inv.Equals(id) {
			return true
		}
	}
	return false
}

// IsRecipient reports whether id currently holds the asset.
func (tm *TokenManager) IsRecipient(id solana.PublicKey) bool {
	return tm.Recipient != nil && tm.Recipient.Equals(id)
}

// SetInvalidators stores refs as an ordered, de-duplicated set.
func (tm *TokenManager) SetInvalidators(refs []solana.PublicKey) {
	tm.Invalidators = dedupe(refs)
}

// ReplaceInvalidator swaps one invalidator reference for another in place.
func (tm *TokenManager) ReplaceInvalidator(old, replacement solana.PublicKey) error {
	if replacement.IsZero() {
		return ErrMissingArgument.WithDetails("new invalidator is required")
	}
	for i, inv := range tm.Invalidators {
		if inv.Equals(old) {
			tm.Invalidators[i] = replacement
			tm.Invalidators = dedupe(tm.Invalidators)
			for j := range tm.CustomInvalidators {
				if tm.CustomInvalidators[j].Identity.Equals(old) {
					tm.CustomInvalidators[j].Identity = replacement
				}
			}
			return nil
		}
	}
	return ErrUnauthorized.WithDetails("caller is not an invalidator")
}

// UpdateInvalidationType switches between Return and Reissue only.
func (tm *TokenManager) UpdateInvalidationType(t InvalidationType) error {
	isLoop := func(x InvalidationType) bool { return x == InvalidationReturn || x == InvalidationReissue }
	if !isLoop(tm.InvalidationType) || !isLoop(t) {
		return ErrInvalidationTypeUpdate.WithDetailsf("%s -> %s", tm.InvalidationType, t)
	}
	tm.InvalidationType = t
	return nil
}

// Outcome is what an invalidation does to custody and to the record.
type Outcome string

const (
	// OutcomeReturn moves the asset to the issuer; terminal.
	OutcomeReturn Outcome = "return"
	// OutcomeSeize leaves the asset escrowed under the manager; terminal.
	OutcomeSeize Outcome = "seize"
	// OutcomeRelease relaxes custody and leaves the asset with its holder; terminal.
	OutcomeRelease Outcome = "release"
	// OutcomeReissue escrows the asset again and loops back to Issued.
	OutcomeReissue Outcome = "reissue"
)

// Terminal reports whether the outcome ends the record.
func (o Outcome) Terminal() bool { return o != OutcomeReissue }

// Resolve maps a trigger to an outcome for the current state.
// An unclaimed manager always returns to the issuer.
func (tm *TokenManager) Resolve(t Trigger) Outcome {
	if tm.State != StateClaimed || t.Reason == ReasonUnissue {
		return OutcomeReturn
	}
	switch tm.InvalidationType {
	case InvalidationInvalidate:
		return OutcomeSeize
	case InvalidationRelease:
		return OutcomeRelease
	case InvalidationReissue:
		if t.Final {
			return OutcomeReturn
		}
		return OutcomeReissue
	}
	return OutcomeReturn
}

// MarkClaimed records a claim by recipient at now.
func (tm *TokenManager) MarkClaimed(recipient solana.PublicKey, now int64) {
	r := recipient
	tm.Recipient = &r
	tm.State = StateClaimed
	tm.StateChangedAt = now
}

// MarkInvalidated ends the record.
func (tm *TokenManager) MarkInvalidated(now int64) {
	tm.State = StateInvalidated
	tm.Listed = false
	tm.StateChangedAt = now
}

// MarkReissued loops a claimed record back to Issued and resets claim-scoped policy state.
func (tm *TokenManager) MarkReissued(now int64) {
	tm.State = StateIssued
	tm.Recipient = nil
	tm.Listed = false
	tm.Cycles++
	tm.StateChangedAt = now
	if tm.TimeInvalidator != nil {
		tm.TimeInvalidator.Reset()
	}
	if tm.UseInvalidator != nil {
		tm.UseInvalidator.Reset()
	}
}

// Holder returns who holds the asset's account.
func (tm *TokenManager) Holder() solana.PublicKey {
	if tm.State == StateClaimed && tm.Recipient != nil {
		return *tm.Recipient
	}
	return tm.ID
}

// Clone returns a deep copy of the token manager.
func (tm *TokenManager) Clone() *TokenManager {
	if tm == nil {
		return nil
	}
	c := *tm
	if tm.Recipient != nil {
		r := *tm.Recipient
		c.Recipient = &r
	}
	c.Invalidators = append([]solana.PublicKey(nil), tm.Invalidators...)
	c.CustomInvalidators = append([]CustomInvalidator(nil), tm.CustomInvalidators...)
	c.ClaimApprover = tm.ClaimApprover.Clone()
	c.TimeInvalidator = tm.TimeInvalidator.Clone()
	c.UseInvalidator = tm.UseInvalidator.Clone()
	return &c
}

// TokenManagerFilter selects token managers in List calls.
type TokenManagerFilter struct {
	State     *State
	Issuer    *solana.PublicKey
	Recipient *solana.PublicKey
	Mint      *solana.PublicKey
	Limit     int
}

// Match reports whether tm satisfies the filter.
func (f TokenManagerFilter) Match(tm *TokenManager) bool {
	if f.State != nil && tm.State != *f.State {
		return false
	}
	if f.Issuer != nil && !tm.Issuer.Equals(*f.Issuer) {
		return false
	}
	if f.Recipient != nil && !tm.IsRecipient(*f.Recipient) {
		return false
	}
	if f.Mint != nil && !tm.Mint.Equals(*f.Mint) {
		return false
	}
	return true
}
