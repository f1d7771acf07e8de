package domain

import (
	"errors"
	"math"
	"testing"
)

func TestUseInvalidator_Increment(t *testing.T) {
	ui := &UseInvalidator{TotalUsages: u64(3)}

	if err := ui.Increment(2); err != nil {
		t.Fatal(err)
	}
	if err := ui.Increment(2); !errors.Is(err, ErrInsufficientUsages) {
		t.Errorf("Increment() past total = %v, want insufficient usages", err)
	}
	if ui.Usages != 2 {
		t.Errorf("Usages = %d, want 2 after rejected increment", ui.Usages)
	}
	if err := ui.Increment(0); err == nil {
		t.Error("Increment(0) should fail")
	}

	unbounded := &UseInvalidator{Usages: math.MaxUint64}
	if err := unbounded.Increment(1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("Increment() overflow = %v", err)
	}
}

func TestUseInvalidator_Evaluate(t *testing.T) {
	tm := newManager(StateClaimed, InvalidationInvalidate)

	if _, ok := (&UseInvalidator{Usages: 100}).Evaluate(tm, 0); ok {
		t.Error("unbounded policy should never fire")
	}
	if _, ok := (&UseInvalidator{Usages: 0, TotalUsages: u64(1)}).Evaluate(tm, 0); ok {
		t.Error("policy should not fire before exhaustion")
	}
	trigger, ok := (&UseInvalidator{Usages: 1, TotalUsages: u64(1)}).Evaluate(tm, 0)
	if !ok || trigger.Reason != ReasonUsageExhausted {
		t.Errorf("Evaluate() = %v, %v, want usage exhausted", trigger, ok)
	}
}

func TestUseInvalidator_CanUse(t *testing.T) {
	authority, recipient, stranger := newKey(), newKey(), newKey()

	ui := &UseInvalidator{UseAuthority: &authority}
	if !ui.CanUse(authority, &recipient) || !ui.CanUse(recipient, &recipient) {
		t.Error("authority and recipient may use")
	}
	if ui.CanUse(stranger, &recipient) {
		t.Error("stranger may not use")
	}
	if (&UseInvalidator{}).CanUse(stranger, nil) {
		t.Error("no one may use an unclaimed manager without authority")
	}
}

func TestUseInvalidator_Extend(t *testing.T) {
	ext := &UseExtension{PaymentAmount: 9, Usages: 3, PaymentMint: newKey(), PaymentManager: newKey()}

	ui := &UseInvalidator{TotalUsages: u64(5), MaxUsages: u64(10), Extension: ext}
	price, total, err := ui.Extend(4)
	if err != nil {
		t.Fatal(err)
	}
	if price != 12 || total != 9 {
		t.Errorf("Extend(4) = %d, %d, want 12, 9", price, total)
	}
	if *ui.TotalUsages != 5 {
		t.Error("Extend must not modify the policy")
	}

	if _, _, err := ui.Extend(6); !errors.Is(err, ErrExceedsMaxUsages) {
		t.Errorf("Extend(6) = %v, want exceeds max usages", err)
	}

	cheap := &UseInvalidator{TotalUsages: u64(1), Extension: &UseExtension{PaymentAmount: 1, Usages: 10, PaymentMint: ext.PaymentMint}}
	if _, _, err := cheap.Extend(1); !errors.Is(err, ErrInvalidExtensionAmount) {
		t.Errorf("Extend() with zero price = %v, want invalid extension amount", err)
	}

	if _, _, err := (&UseInvalidator{}).Extend(1); !errors.Is(err, ErrExtensionNotConfigured) {
		t.Errorf("Extend() without terms = %v", err)
	}
}

func TestUseInvalidator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ui      UseInvalidator
		wantErr bool
	}{
		{"counter only", UseInvalidator{}, false},
		{"bounded", UseInvalidator{TotalUsages: u64(1)}, false},
		{"zero total", UseInvalidator{TotalUsages: u64(0)}, true},
		{"total above max", UseInvalidator{TotalUsages: u64(5), MaxUsages: u64(4)}, true},
		{"extension without usages", UseInvalidator{TotalUsages: u64(1), Extension: &UseExtension{PaymentMint: newKey()}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ui.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidPolicy)
			}
		})
	}
}
