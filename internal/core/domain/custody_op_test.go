package domain

import "testing"

func TestCustodyOp_Inverse(t *testing.T) {
	mint, a, b := newKey(), newKey(), newKey()

	ops := []CustodyOp{
		Transfer(mint, a, b, 7),
		Freeze(mint, b),
		Delegate(mint, b, a, 7),
	}
	inv := InverseOps(ops)

	want := []CustodyOp{
		Undelegate(mint, b, a, 7),
		Thaw(mint, b),
		Transfer(mint, b, a, 7),
	}
	if len(inv) != len(want) {
		t.Fatalf("len = %d, want %d", len(inv), len(want))
	}
	for i := range want {
		if inv[i] != want[i] {
			t.Errorf("inverse[%d] = %v, want %v", i, inv[i], want[i])
		}
	}

	for _, op := range append(ops, Thaw(mint, a), Undelegate(mint, a, b, 1)) {
		if op.Inverse().Inverse() != op {
			t.Errorf("double inverse of %v changed it", op)
		}
	}
}
