package domain

import "github.com/gagliardetto/solana-go"

// TimeInvalidator ends custody at a point in time.
//
// Expiration and DurationSeconds only apply once claimed; an issued but
// unclaimed manager can only time out through MaxExpiration.
type TimeInvalidator struct {
	Expiration      *int64         `json:"expiration,omitempty"`
	MaxExpiration   *int64         `json:"max_expiration,omitempty"`
	DurationSeconds *int64         `json:"duration_seconds,omitempty"`
	Extension       *TimeExtension `json:"extension,omitempty"`
}

// TimeExtension prices extra time: PaymentAmount buys DurationSeconds.
type TimeExtension struct {
	PaymentAmount           uint64           `json:"payment_amount"`
	DurationSeconds         uint64           `json:"duration_seconds"`
	PaymentMint             solana.PublicKey `json:"payment_mint"`
	PaymentManager          solana.PublicKey `json:"payment_manager"`
	DisablePartialExtension bool             `json:"disable_partial_extension,omitempty"`
}

func (ti *TimeInvalidator) PolicyKind() PolicyKind { return PolicyTime }

func (*TimeInvalidator) sealed() {}

// Validate checks the policy at issue time.
func (ti *TimeInvalidator) Validate() error {
	if ti.Expiration == nil && ti.DurationSeconds == nil && ti.MaxExpiration == nil {
		return ErrInvalidPolicy.WithDetails("time invalidator needs duration, expiration or max expiration")
	}
	if ti.DurationSeconds != nil && *ti.DurationSeconds <= 0 {
		return ErrInvalidPolicy.WithDetails("duration_seconds must be positive")
	}
	if ti.Extension != nil {
		if ti.Extension.DurationSeconds == 0 {
			return ErrInvalidPolicy.WithDetails("extension duration_seconds must be positive")
		}
		if ti.Extension.PaymentMint.IsZero() {
			return ErrInvalidPolicy.WithDetails("extension payment_mint is required")
		}
	}
	return nil
}

// Evaluate implements Policy.
func (ti *TimeInvalidator) Evaluate(tm *TokenManager, now int64) (Trigger, bool) {
	if ti.MaxExpiration != nil && now >= *ti.MaxExpiration {
		return Trigger{Reason: ReasonMaxExpiration, Policy: PolicyTime, Final: true}, true
	}
	if tm.State != StateClaimed {
		return Trigger{}, false
	}
	if ti.Expiration != nil {
		if now >= *ti.Expiration {
			return Trigger{Reason: ReasonExpired, Policy: PolicyTime}, true
		}
		return Trigger{}, false
	}
	if end, ok := ti.durationEnd(tm.StateChangedAt); ok && now >= end {
		return Trigger{Reason: ReasonExpired, Policy: PolicyTime}, true
	}
	return Trigger{}, false
}

// durationEnd is stateChangedAt + DurationSeconds. A sum past the int64
// range is never reached, so it reports false.
func (ti *TimeInvalidator) durationEnd(stateChangedAt int64) (int64, bool) {
	if ti.DurationSeconds == nil {
		return 0, false
	}
	end, err := AddSeconds(stateChangedAt, *ti.DurationSeconds)
	if err != nil {
		return 0, false
	}
	return end, true
}

// CurrentExpiration is the moment a claimed manager times out, ignoring MaxExpiration.
func (ti *TimeInvalidator) CurrentExpiration(stateChangedAt int64) (int64, bool) {
	if ti.Expiration != nil {
		return *ti.Expiration, true
	}
	return ti.durationEnd(stateChangedAt)
}

// Extend computes the price and new expiration for adding seconds.
// The policy is not modified; callers apply the result with SetExpiration.
func (ti *TimeInvalidator) Extend(stateChangedAt int64, seconds uint64) (price uint64, expiration int64, err error) {
	ext := ti.Extension
	if ext == nil {
		return 0, 0, ErrExtensionNotConfigured
	}
	if seconds == 0 {
		return 0, 0, ErrInvalidExtensionAmount.WithDetails("seconds must be positive")
	}
	price, err = MulDiv(seconds, ext.PaymentAmount, ext.DurationSeconds)
	if err != nil {
		return 0, 0, err
	}
	if price == 0 && ext.PaymentAmount > 0 {
		return 0, 0, ErrInvalidExtensionAmount
	}
	if ext.DisablePartialExtension && seconds%ext.DurationSeconds != 0 {
		return 0, 0, ErrInvalidPartialExtension.WithDetailsf("seconds must be a multiple of %d", ext.DurationSeconds)
	}

	var base int64
	var hasBase bool
	if ti.DurationSeconds != nil {
		base, err = AddSeconds(stateChangedAt, *ti.DurationSeconds)
		if err != nil {
			return 0, 0, err
		}
		hasBase = true
	}
	if ti.Expiration != nil && (!hasBase || *ti.Expiration > base) {
		base, hasBase = *ti.Expiration, true
	}
	if !hasBase {
		return 0, 0, ErrExtensionNotConfigured.WithDetails("no expiration to extend")
	}
	if seconds > uint64(1<<62) {
		return 0, 0, ErrArithmeticOverflow
	}
	expiration, err = AddSeconds(base, int64(seconds))
	if err != nil {
		return 0, 0, err
	}
	if ti.MaxExpiration != nil && expiration > *ti.MaxExpiration {
		return 0, 0, ErrExceedsMaxExpiration
	}
	return price, expiration, nil
}

// UpdateMaxExpiration validates and applies a new max expiration.
func (ti *TimeInvalidator) UpdateMaxExpiration(state State, stateChangedAt, newMax int64) error {
	if state == StateClaimed {
		if ti.Expiration != nil && newMax < *ti.Expiration {
			return ErrInvalidMaxExpiration.WithDetails("before current expiration")
		}
		if ti.MaxExpiration != nil && ti.Expiration == nil && newMax < *ti.MaxExpiration {
			return ErrInvalidMaxExpiration.WithDetails("before current max expiration")
		}
		if ti.Expiration == nil && ti.DurationSeconds != nil {
			end, ok := ti.durationEnd(stateChangedAt)
			if !ok || newMax < end {
				return ErrInvalidMaxExpiration.WithDetails("before current duration end")
			}
		}
	}
	ti.MaxExpiration = &newMax
	return nil
}

// Reset clears the claim-scoped expiration when a manager is reissued.
func (ti *TimeInvalidator) Reset() {
	ti.Expiration = nil
}

// Clone returns a deep copy.
func (ti *TimeInvalidator) Clone() *TimeInvalidator {
	if ti == nil {
		return nil
	}
	c := &TimeInvalidator{
		Expiration:      cloneInt64(ti.Expiration),
		MaxExpiration:   cloneInt64(ti.MaxExpiration),
		DurationSeconds: cloneInt64(ti.DurationSeconds),
	}
	if ti.Extension != nil {
		ext := *ti.Extension
		c.Extension = &ext
	}
	return c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUint64(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
