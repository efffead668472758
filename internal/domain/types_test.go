package domain

import "testing"

func TestPnL(t *testing.T) {
	// Long: price moved 90 → 100 on 10 shares.
	if got := PnL(DirectionLong, 90, 100, 10); got != 100.0 {
		t.Errorf("long PnL = %v, want 100.0", got)
	}
	// Short with the same numbers is the mirror image.
	if got := PnL(DirectionShort, 90, 100, 10); got != -100.0 {
		t.Errorf("short PnL = %v, want -100.0", got)
	}
	// Flat price is zero either way.
	if got := PnL(DirectionLong, 50, 50, 3); got != 0 {
		t.Errorf("flat long PnL = %v, want 0", got)
	}
	if got := PnL(DirectionShort, 50, 50, 3); got != 0 {
		t.Errorf("flat short PnL = %v, want 0", got)
	}
}

func TestDirectionInvert(t *testing.T) {
	if DirectionLong.Invert() != DirectionShort {
		t.Error("long should invert to short")
	}
	if DirectionShort.Invert() != DirectionLong {
		t.Error("short should invert to long")
	}
}

func TestContractTypeInvert(t *testing.T) {
	if ContractCall.Invert() != ContractPut {
		t.Error("call should invert to put")
	}
	if ContractPut.Invert() != ContractCall {
		t.Error("put should invert to call")
	}
}
