// Package broker defines the narrow brokerage client used by the execution
// adapter and provides an Alpaca implementation plus an in-memory simulator.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"contrabot/internal/domain"
)

// TimeInForce controls how long a submitted order stays working.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
)

// OrderRequest describes a market order to submit. Symbol is already in
// venue form (e.g. "AAPL", "BTC/USD", or an OCC option symbol).
type OrderRequest struct {
	Symbol        string
	Qty           decimal.Decimal
	Side          domain.Direction // long buys, short sells
	TimeInForce   TimeInForce
	ClientOrderID string
}

// Order is the venue's acknowledgement of an accepted order.
type Order struct {
	ID string
}

// Broker abstracts the brokerage operations the execution adapter needs:
// market clock, price discovery, order placement, and position flattening.
// Implementations do not retry; the caller owns the retry policy.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// IsMarketOpen reports whether the equity market is currently open.
	IsMarketOpen(ctx context.Context) (bool, error)

	// LatestPrice returns the current quote for a venue symbol.
	LatestPrice(ctx context.Context, symbol string, class domain.AssetClass) (float64, error)

	// SubmitOrder sends a market order to the venue for execution.
	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// ClosePosition asks the venue to flatten the position in symbol.
	ClosePosition(ctx context.Context, symbol string) error

	// SupportsOptions reports whether the account may trade options.
	SupportsOptions(ctx context.Context) (bool, error)
}
