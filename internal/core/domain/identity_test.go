package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestAddresses_Deterministic(t *testing.T) {
	mint := newKey()

	a1, b1, err := TokenManagerAddress(mint)
	if err != nil {
		t.Fatal(err)
	}
	a2, b2, _ := TokenManagerAddress(mint)
	if !a1.Equals(a2) || b1 != b2 {
		t.Error("token manager address should be deterministic")
	}

	other, _, _ := TokenManagerAddress(newKey())
	if a1.Equals(other) {
		t.Error("different mints should derive different addresses")
	}

	ti, _ := TimeInvalidatorAddress(a1)
	ui, _ := UseInvalidatorAddress(a1)
	if ti.Equals(ui) {
		t.Error("policy references should differ")
	}

	m1, _, err := MarketplaceAddress("bazaar")
	if err != nil {
		t.Fatal(err)
	}
	p1, _, _ := PaymentManagerAddress("bazaar")
	if m1.Equals(p1) {
		t.Error("seeds should namespace names")
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName(""); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("ValidateName(\"\") = %v", err)
	}
	if err := ValidateName(strings.Repeat("x", MaxNameLength+1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ValidateName(long) = %v", err)
	}
	if _, _, err := MarketplaceAddress(strings.Repeat("x", MaxNameLength)); err != nil {
		t.Errorf("max length name = %v", err)
	}
}

func TestParseIdentity(t *testing.T) {
	k := newKey()
	got, err := ParseIdentity("issuer", k.String())
	if err != nil || !got.Equals(k) {
		t.Errorf("ParseIdentity() = %v, %v", got, err)
	}
	if _, err := ParseIdentity("issuer", "not-base58!"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseIdentity(bad) = %v", err)
	}
	if _, err := ParseIdentity("issuer", ""); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("ParseIdentity(empty) = %v", err)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, d uint64
		want    uint64
		wantErr bool
	}{
		{1000, 500, 10000, 50, false},
		{999, 1, 10000, 0, false},
		{math.MaxUint64, 10000, 10000, math.MaxUint64, false},
		{math.MaxUint64, 2, 1, 0, true},
		{1, 1, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := MulDiv(tt.a, tt.b, tt.d)
		if (err != nil) != tt.wantErr {
			t.Errorf("MulDiv(%d,%d,%d) error = %v", tt.a, tt.b, tt.d, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MulDiv(%d,%d,%d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
		}
	}

	if _, err := AddU64(math.MaxUint64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Error("AddU64 should detect overflow")
	}
	if _, err := SubU64(1, 2); !errors.Is(err, ErrArithmeticOverflow) {
		t.Error("SubU64 should detect underflow")
	}
	if _, err := AddSeconds(math.MaxInt64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Error("AddSeconds should detect overflow")
	}
}
