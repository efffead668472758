package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"contrabot/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements Broker against the Alpaca trading and market-data
// APIs. Pointing BaseURL at the paper endpoint gives paper trading.
type AlpacaBroker struct {
	trading *alpaca.Client
	data    *marketdata.Client

	mu             sync.Mutex
	optionsChecked bool
	optionsOK      bool
}

// NewAlpacaBroker creates an AlpacaBroker configured with the given
// credentials and endpoints. Empty URLs fall back to the SDK defaults.
func NewAlpacaBroker(apiKey, apiSecret, baseURL, dataURL string) *AlpacaBroker {
	return &AlpacaBroker{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   dataURL,
		}),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// IsMarketOpen reports whether the US equity market is open per the Alpaca
// clock.
func (b *AlpacaBroker) IsMarketOpen(_ context.Context) (bool, error) {
	clock, err := b.trading.GetClock()
	if err != nil {
		return false, fmt.Errorf("GetClock: %w", err)
	}
	return clock.IsOpen, nil
}

// LatestPrice returns the latest ask for symbol, falling back to the bid
// when the ask side is empty.
func (b *AlpacaBroker) LatestPrice(_ context.Context, symbol string, class domain.AssetClass) (float64, error) {
	if class == domain.AssetCrypto {
		quote, err := b.data.GetLatestCryptoQuote(symbol, marketdata.GetLatestCryptoQuoteRequest{})
		if err != nil {
			return 0, fmt.Errorf("GetLatestCryptoQuote %s: %w", symbol, err)
		}
		if quote.AskPrice > 0 {
			return quote.AskPrice, nil
		}
		return quote.BidPrice, nil
	}

	quote, err := b.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return 0, fmt.Errorf("GetLatestQuote %s: %w", symbol, err)
	}
	if quote.AskPrice > 0 {
		return quote.AskPrice, nil
	}
	return quote.BidPrice, nil
}

// SubmitOrder places a market order with Alpaca.
func (b *AlpacaBroker) SubmitOrder(_ context.Context, req OrderRequest) (*Order, error) {
	side := alpaca.Buy
	if req.Side == domain.DirectionShort {
		side = alpaca.Sell
	}
	tif := alpaca.Day
	if req.TimeInForce == TIFGTC {
		tif = alpaca.GTC
	}

	qty := req.Qty
	order, err := b.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   tif,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("PlaceOrder %s: %w", req.Symbol, err)
	}
	return &Order{ID: order.ID}, nil
}

// ClosePosition asks Alpaca to flatten the position in symbol.
func (b *AlpacaBroker) ClosePosition(_ context.Context, symbol string) error {
	if _, err := b.trading.ClosePosition(symbol, alpaca.ClosePositionRequest{}); err != nil {
		return fmt.Errorf("ClosePosition %s: %w", symbol, err)
	}
	return nil
}

// SupportsOptions reports whether the account has options approval. The
// result is cached after the first successful lookup.
func (b *AlpacaBroker) SupportsOptions(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.optionsChecked {
		return b.optionsOK, nil
	}

	account, err := b.trading.GetAccount()
	if err != nil {
		return false, fmt.Errorf("GetAccount: %w", err)
	}
	b.optionsChecked = true
	b.optionsOK = account.OptionsApprovedLevel > 0
	return b.optionsOK, nil
}
