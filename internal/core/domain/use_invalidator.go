package domain

import "github.com/gagliardetto/solana-go"

// UseInvalidator ends custody once the recorded usages reach TotalUsages.
// Without TotalUsages it only counts.
type UseInvalidator struct {
	Usages       uint64            `json:"usages"`
	TotalUsages  *uint64           `json:"total_usages,omitempty"`
	MaxUsages    *uint64           `json:"max_usages,omitempty"`
	UseAuthority *solana.PublicKey `json:"use_authority,omitempty"`
	Extension    *UseExtension     `json:"extension,omitempty"`
}

// UseExtension prices extra usages: PaymentAmount buys Usages.
type UseExtension struct {
	PaymentAmount  uint64           `json:"payment_amount"`
	Usages         uint64           `json:"usages"`
	PaymentMint    solana.PublicKey `json:"payment_mint"`
	PaymentManager solana.PublicKey `json:"payment_manager"`
}

func (ui *UseInvalidator) PolicyKind() PolicyKind { return PolicyUse }

func (*UseInvalidator) sealed() {}

// Validate checks the policy at issue time.
func (ui *UseInvalidator) Validate() error {
	if ui.TotalUsages != nil && *ui.TotalUsages == 0 {
		return ErrInvalidPolicy.WithDetails("total_usages must be positive")
	}
	if ui.TotalUsages != nil && ui.MaxUsages != nil && *ui.TotalUsages > *ui.MaxUsages {
		return ErrInvalidPolicy.WithDetails("total_usages exceeds max_usages")
	}
	if ui.Extension != nil {
		if ui.Extension.Usages == 0 {
			return ErrInvalidPolicy.WithDetails("extension usages must be positive")
		}
		if ui.Extension.PaymentMint.IsZero() {
			return ErrInvalidPolicy.WithDetails("extension payment_mint is required")
		}
	}
	return nil
}

// Evaluate implements Policy.
func (ui *UseInvalidator) Evaluate(tm *TokenManager, _ int64) (Trigger, bool) {
	if ui.TotalUsages != nil && ui.Usages >= *ui.TotalUsages {
		return Trigger{Reason: ReasonUsageExhausted, Policy: PolicyUse}, true
	}
	return Trigger{}, false
}

// CanUse reports whether caller may record usages on a manager held by recipient.
func (ui *UseInvalidator) CanUse(caller solana.PublicKey, recipient *solana.PublicKey) bool {
	if ui.UseAuthority != nil && caller.Equals(*ui.UseAuthority) {
		return true
	}
	return recipient != nil && caller.Equals(*recipient)
}

// Increment records n usages.
func (ui *UseInvalidator) Increment(n uint64) error {
	if n == 0 {
		return ErrInvalidArgument.WithDetails("usages must be positive")
	}
	next, err := AddU64(ui.Usages, n)
	if err != nil {
		return err
	}
	if ui.TotalUsages != nil && next > *ui.TotalUsages {
		return ErrInsufficientUsages.WithDetailsf("%d of %d used", ui.Usages, *ui.TotalUsages)
	}
	ui.Usages = next
	return nil
}

// Extend computes the price and new total for adding n usages.
// The policy is not modified.
func (ui *UseInvalidator) Extend(n uint64) (price uint64, total uint64, err error) {
	ext := ui.Extension
	if ext == nil || ui.TotalUsages == nil {
		return 0, 0, ErrExtensionNotConfigured
	}
	if n == 0 {
		return 0, 0, ErrInvalidExtensionAmount.WithDetails("usages must be positive")
	}
	price, err = MulDiv(n, ext.PaymentAmount, ext.Usages)
	if err != nil {
		return 0, 0, err
	}
	if price == 0 && ext.PaymentAmount > 0 {
		return 0, 0, ErrInvalidExtensionAmount
	}
	total, err = AddU64(*ui.TotalUsages, n)
	if err != nil {
		return 0, 0, err
	}
	if ui.MaxUsages != nil && total > *ui.MaxUsages {
		return 0, 0, ErrExceedsMaxUsages
	}
	return price, total, nil
}

// Reset clears the usage counter when a manager is reissued.
func (ui *UseInvalidator) Reset() {
	ui.Usages = 0
}

// Clone returns a deep copy.
func (ui *UseInvalidator) Clone() *UseInvalidator {
	if ui == nil {
		return nil
	}
	c := &UseInvalidator{
		Usages:      ui.Usages,
		TotalUsages: cloneUint64(ui.TotalUsages),
		MaxUsages:   cloneUint64(ui.MaxUsages),
	}
	if ui.UseAuthority != nil {
		a := *ui.UseAuthority
		c.UseAuthority = &a
	}
	if ui.Extension != nil {
		ext := *ui.Extension
		c.Extension = &ext
	}
	return c
}
