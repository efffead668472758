package executor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"contrabot/internal/domain"
)

// Signals name coins loosely ("BTC", "BITCOIN"); Alpaca expects pair form
// ("BTC/USD"). Unknown symbols get "/USD" appended.
var cryptoSymbols = map[string]string{
	"BTC": "BTC/USD", "BITCOIN": "BTC/USD",
	"ETH": "ETH/USD", "ETHEREUM": "ETH/USD",
	"SOL": "SOL/USD", "SOLANA": "SOL/USD",
	"DOGE": "DOGE/USD", "DOGECOIN": "DOGE/USD",
	"ADA": "ADA/USD", "CARDANO": "ADA/USD",
	"XRP": "XRP/USD", "RIPPLE": "XRP/USD",
	"AVAX": "AVAX/USD", "AVALANCHE": "AVAX/USD",
	"DOT": "DOT/USD", "POLKADOT": "DOT/USD",
	"LINK": "LINK/USD", "CHAINLINK": "LINK/USD",
	"LTC": "LTC/USD", "LITECOIN": "LTC/USD",
	"UNI": "UNI/USD", "UNISWAP": "UNI/USD",
	"MATIC": "MATIC/USD", "POLYGON": "MATIC/USD",
	"SHIB": "SHIB/USD", "SHIBA": "SHIB/USD",
	"BNB":  "BNB/USD",
	"NEAR": "NEAR/USD",
	"FTM":  "FTM/USD", "FANTOM": "FTM/USD",
	"INJ": "INJ/USD", "INJECTIVE": "INJ/USD",
	"ARB": "ARB/USD", "ARBITRUM": "ARB/USD",
	"OP": "OP/USD", "OPTIMISM": "OP/USD",
	"PEPE": "PEPE/USD",
}

// CryptoSymbol maps a signal ticker to Alpaca's crypto pair form. Tickers
// already in pair form pass through unchanged.
func CryptoSymbol(ticker string) string {
	upper := strings.ToUpper(ticker)
	if strings.Contains(upper, "/") {
		return upper
	}
	if sym, ok := cryptoSymbols[upper]; ok {
		return sym
	}
	return upper + "/USD"
}

// StockSymbol normalizes a signal ticker to Alpaca's equity form.
func StockSymbol(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(ticker), "/", "")
}

// VenueSymbol returns the venue form of a ticker for the given asset class.
func VenueSymbol(ticker string, class domain.AssetClass) string {
	if class == domain.AssetCrypto {
		return CryptoSymbol(ticker)
	}
	return StockSymbol(ticker)
}

// OCCSymbol builds the OCC option contract symbol from the underlying
// ticker and leg details, e.g. AAPL 2024-03-15 C 200 → AAPL240315C00200000.
func OCCSymbol(ticker string, leg domain.OptionLeg) (string, error) {
	expiry, err := time.Parse("2006-01-02", leg.Expiry)
	if err != nil {
		return "", fmt.Errorf("parsing option expiry %q: %w", leg.Expiry, err)
	}
	if leg.Strike <= 0 {
		return "", fmt.Errorf("option strike must be positive, got %v", leg.Strike)
	}

	contract := "C"
	if leg.ContractType == domain.ContractPut {
		contract = "P"
	}
	// Strike is encoded in thousandths of a dollar, zero-padded to 8 digits.
	strike := int(math.Round(leg.Strike * 1000))
	return fmt.Sprintf("%s%s%s%08d", StockSymbol(ticker), expiry.Format("060102"), contract, strike), nil
}
