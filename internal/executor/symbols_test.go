package executor

import (
	"testing"

	"contrabot/internal/domain"
)

func TestCryptoSymbol(t *testing.T) {
	cases := map[string]string{
		"BTC":     "BTC/USD",
		"bitcoin": "BTC/USD",
		"ETH":     "ETH/USD",
		"doge":    "DOGE/USD",
		"NEWCOIN": "NEWCOIN/USD", // unknown gets /USD appended
		"BTC/USD": "BTC/USD",     // already pair form
	}
	for in, want := range cases {
		if got := CryptoSymbol(in); got != want {
			t.Errorf("CryptoSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStockSymbol(t *testing.T) {
	if got := StockSymbol("brk/b"); got != "BRKB" {
		t.Errorf("StockSymbol(brk/b) = %q, want BRKB", got)
	}
	if got := StockSymbol("aapl"); got != "AAPL" {
		t.Errorf("StockSymbol(aapl) = %q, want AAPL", got)
	}
}

func TestVenueSymbol(t *testing.T) {
	if got := VenueSymbol("btc", domain.AssetCrypto); got != "BTC/USD" {
		t.Errorf("VenueSymbol crypto = %q, want BTC/USD", got)
	}
	if got := VenueSymbol("aapl", domain.AssetStock); got != "AAPL" {
		t.Errorf("VenueSymbol stock = %q, want AAPL", got)
	}
}

func TestOCCSymbol(t *testing.T) {
	occ, err := OCCSymbol("AAPL", domain.OptionLeg{
		Expiry:       "2024-03-15",
		Strike:       200,
		ContractType: domain.ContractCall,
	})
	if err != nil {
		t.Fatalf("OCCSymbol: %v", err)
	}
	if occ != "AAPL240315C00200000" {
		t.Errorf("occ = %q, want AAPL240315C00200000", occ)
	}

	occ, err = OCCSymbol("spy", domain.OptionLeg{
		Expiry:       "2025-01-17",
		Strike:       512.5,
		ContractType: domain.ContractPut,
	})
	if err != nil {
		t.Fatalf("OCCSymbol: %v", err)
	}
	if occ != "SPY250117P00512500" {
		t.Errorf("occ = %q, want SPY250117P00512500", occ)
	}
}

func TestOCCSymbolInvalid(t *testing.T) {
	if _, err := OCCSymbol("AAPL", domain.OptionLeg{Expiry: "03/15/2024", Strike: 200}); err == nil {
		t.Error("expected error for malformed expiry")
	}
	if _, err := OCCSymbol("AAPL", domain.OptionLeg{Expiry: "2024-03-15", Strike: 0}); err == nil {
		t.Error("expected error for zero strike")
	}
}
