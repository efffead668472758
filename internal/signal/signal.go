// Package signal turns filtered posts into structured trade signals using
// an LLM, then applies the confidence gate, the enabled-markets gate, and
// contrarian inversion.
package signal

import (
	"fmt"
	"strings"

	"contrabot/internal/domain"
)

// EnabledMarkets normalizes configured market names ("stocks", "crypto",
// "options") to the asset classes the extractor emits.
func EnabledMarkets(names []string) map[domain.AssetClass]bool {
	enabled := make(map[domain.AssetClass]bool, len(names))
	for _, n := range names {
		n = strings.TrimSuffix(strings.ToLower(n), "s")
		enabled[domain.AssetClass(n)] = true
	}
	return enabled
}

// Gate decides whether an extracted signal proceeds to admission. It
// returns false with a human-readable reason when the signal is dropped.
type Gate struct {
	MinConfidence float64
	Markets       map[domain.AssetClass]bool
}

// Admit applies the confidence and market gates.
func (g Gate) Admit(sig *domain.TradeSignal) (bool, string) {
	if sig.Confidence < g.MinConfidence {
		return false, fmt.Sprintf("confidence %.2f below %.2f", sig.Confidence, g.MinConfidence)
	}
	if !g.Markets[sig.AssetClass] {
		return false, fmt.Sprintf("asset class %q not enabled", sig.AssetClass)
	}
	return true, ""
}

// Invert returns a copy of the signal with the trade direction flipped
// (long↔short) and, for options, the contract type flipped (call↔put).
// RawDirection is preserved so the original sentiment stays on record.
func Invert(sig *domain.TradeSignal) *domain.TradeSignal {
	out := *sig
	out.Direction = sig.Direction.Invert()
	if sig.Option != nil {
		leg := *sig.Option
		leg.ContractType = leg.ContractType.Invert()
		out.Option = &leg
	}
	return &out
}
