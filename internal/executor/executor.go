// Package executor implements the execution adapter: a single facade over
// the brokerage for price discovery, order placement, deferred-order
// resubmission, and position closure. It owns symbol normalization,
// quantity sizing, and the bounded retry policy for venue calls.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contrabot/internal/broker"
	"contrabot/internal/domain"
	"contrabot/internal/store"
	"contrabot/internal/util"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1500 * time.Millisecond

	// Crypto quantities are fractional, rounded to 6 decimals with a floor
	// that avoids zero-quantity orders.
	cryptoQtyPrecision = 1e6
	minCryptoQty       = 1e-6
)

// Executor submits and manages brokerage orders for admitted signals.
type Executor struct {
	broker  broker.Broker
	trades  store.TradeStore
	pending store.PendingOrderStore

	maxPositionUSD float64
	maxAttempts    int
	baseDelay      time.Duration
	log            *slog.Logger
}

// New creates an Executor sizing positions up to maxPositionUSD.
func New(b broker.Broker, trades store.TradeStore, pending store.PendingOrderStore, maxPositionUSD float64) *Executor {
	return &Executor{
		broker:         b,
		trades:         trades,
		pending:        pending,
		maxPositionUSD: maxPositionUSD,
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		log:            slog.Default().With("component", "executor"),
	}
}

// CurrentPrice returns the latest quote for a ticker, or ok=false when no
// usable price is available. Lookup failures are logged, never raised, so a
// missing quote cannot fail the caller.
func (e *Executor) CurrentPrice(ctx context.Context, ticker string, class domain.AssetClass) (float64, bool) {
	symbol := VenueSymbol(ticker, class)
	price, err := e.broker.LatestPrice(ctx, symbol, class)
	if err != nil {
		e.log.Warn("could not fetch price", "symbol", symbol, "err", err)
		return 0, false
	}
	if price <= 0 {
		return 0, false
	}
	return price, true
}

// IsMarketOpen reports whether the equity market is open. Clock failures
// are treated as closed.
func (e *Executor) IsMarketOpen(ctx context.Context) bool {
	open, err := e.broker.IsMarketOpen(ctx)
	if err != nil {
		e.log.Warn("could not fetch market clock", "err", err)
		return false
	}
	return open
}

// Execute submits an order for the given signal, dispatching by asset
// class. A stock order placed while the market is closed is queued as a
// PendingOrder and counts as accepted. A nil return means the order was
// submitted or queued.
func (e *Executor) Execute(ctx context.Context, sig *domain.TradeSignal) error {
	switch sig.AssetClass {
	case domain.AssetOption:
		return e.executeOption(ctx, sig)
	case domain.AssetCrypto:
		return e.executeCrypto(ctx, sig)
	default:
		return e.executeStock(ctx, sig)
	}
}

// SubmitPendingOrders resubmits queued stock orders in FIFO order. It
// no-ops while the market is closed. Each entry is deleted only after a
// successful submission; a failure leaves it queued for the next invocation.
func (e *Executor) SubmitPendingOrders(ctx context.Context) {
	if !e.IsMarketOpen(ctx) {
		return
	}

	orders, err := e.pending.ListPendingOrders(ctx)
	if err != nil {
		e.log.Error("listing pending orders", "err", err)
		return
	}
	if len(orders) == 0 {
		return
	}

	e.log.Info("market is open, submitting pending orders", "count", len(orders))
	for _, po := range orders {
		if ctx.Err() != nil {
			return
		}
		if err := e.submitAndRecord(ctx, po.SignalID, po.Ticker, po.Direction, po.Qty, po.AssetClass, broker.TIFDay, 0); err != nil {
			e.log.Error("pending order submission failed, leaving queued", "id", po.ID, "ticker", po.Ticker, "err", err)
			continue
		}
		if err := e.pending.DeletePendingOrder(ctx, po.ID); err != nil {
			e.log.Error("deleting submitted pending order", "id", po.ID, "err", err)
		}
	}
}

// ClosePosition asks the venue to flatten the position in ticker. Failures
// are logged and returned; the caller retries on its next cycle.
func (e *Executor) ClosePosition(ctx context.Context, ticker string, class domain.AssetClass) error {
	symbol := VenueSymbol(ticker, class)
	err := util.Retry(ctx, e.maxAttempts, e.baseDelay, func() error {
		return e.broker.ClosePosition(ctx, symbol)
	})
	if err != nil {
		e.log.Error("failed to close position", "symbol", symbol, "err", err)
		return err
	}
	e.log.Info("closed position", "symbol", symbol)
	return nil
}

// ---------------------------------------------------------------------------
// Stocks
// ---------------------------------------------------------------------------

func (e *Executor) executeStock(ctx context.Context, sig *domain.TradeSignal) error {
	symbol := StockSymbol(sig.Ticker)

	price, ok := e.CurrentPrice(ctx, sig.Ticker, domain.AssetStock)
	if !ok {
		e.log.Warn("no price available, skipping", "symbol", symbol)
		return fmt.Errorf("no price available for %s", symbol)
	}

	// Whole shares, at least one.
	qty := math.Floor(e.maxPositionUSD / price)
	if qty < 1 {
		qty = 1
	}

	if !e.IsMarketOpen(ctx) {
		e.log.Info("market closed, queuing stock order",
			"symbol", symbol, "direction", sig.Direction, "qty", qty)
		_, err := e.pending.SavePendingOrder(ctx, &domain.PendingOrder{
			SignalID:   sig.ID,
			Ticker:     symbol,
			Direction:  sig.Direction,
			Qty:        qty,
			AssetClass: domain.AssetStock,
		})
		if err != nil {
			return fmt.Errorf("queuing pending order for %s: %w", symbol, err)
		}
		return nil
	}

	return e.submitAndRecord(ctx, sig.ID, symbol, sig.Direction, qty, domain.AssetStock, broker.TIFDay, price)
}

// ---------------------------------------------------------------------------
// Crypto
// ---------------------------------------------------------------------------

func (e *Executor) executeCrypto(ctx context.Context, sig *domain.TradeSignal) error {
	symbol := CryptoSymbol(sig.Ticker)

	// The venue does not support short-selling crypto. Rejected before any
	// network call; no retry budget is consumed.
	if sig.Direction == domain.DirectionShort {
		e.log.Info("skipping short crypto signal, venue does not support crypto shorts", "symbol", symbol)
		return util.Permanent(fmt.Errorf("crypto short unsupported for %s", symbol))
	}

	price, ok := e.CurrentPrice(ctx, sig.Ticker, domain.AssetCrypto)
	if !ok {
		e.log.Warn("no price available, skipping", "symbol", symbol)
		return fmt.Errorf("no price available for %s", symbol)
	}

	qty := math.Round(e.maxPositionUSD/price*cryptoQtyPrecision) / cryptoQtyPrecision
	if qty < minCryptoQty {
		qty = minCryptoQty
	}

	return e.submitAndRecord(ctx, sig.ID, symbol, sig.Direction, qty, domain.AssetCrypto, broker.TIFGTC, price)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

func (e *Executor) executeOption(ctx context.Context, sig *domain.TradeSignal) error {
	if sig.Option == nil {
		e.log.Warn("option signal has no leg details, skipping", "ticker", sig.Ticker)
		return util.Permanent(fmt.Errorf("option signal for %s missing leg details", sig.Ticker))
	}

	supported, err := e.broker.SupportsOptions(ctx)
	if err != nil {
		e.log.Warn("could not determine options support", "err", err)
		return fmt.Errorf("checking options support: %w", err)
	}
	if !supported {
		e.log.Warn("options not supported on this account, skipping", "ticker", sig.Ticker)
		return util.Permanent(fmt.Errorf("options unsupported on account"))
	}

	occ, err := OCCSymbol(sig.Ticker, *sig.Option)
	if err != nil {
		e.log.Warn("could not build option symbol", "ticker", sig.Ticker, "err", err)
		return util.Permanent(err)
	}

	// Single contract per signal; the premium is unknown until fill.
	return e.submitAndRecord(ctx, sig.ID, occ, sig.Direction, 1, domain.AssetOption, broker.TIFDay, 0)
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// submitAndRecord submits a market order with the bounded retry policy and,
// on acceptance, persists the resulting trade. The trade row is written only
// after the venue accepts the order, so no record exists for orders the
// venue never saw; a record-write failure after acceptance is surfaced to
// abort the admission.
func (e *Executor) submitAndRecord(ctx context.Context, signalID int64, symbol string, dir domain.Direction, qty float64, class domain.AssetClass, tif broker.TimeInForce, entryHint float64) error {
	req := broker.OrderRequest{
		Symbol:        symbol,
		Qty:           decimal.NewFromFloat(qty),
		Side:          dir,
		TimeInForce:   tif,
		ClientOrderID: uuid.NewString(),
	}

	var order *broker.Order
	err := util.Retry(ctx, e.maxAttempts, e.baseDelay, func() error {
		o, err := e.broker.SubmitOrder(ctx, req)
		if err != nil {
			e.log.Warn("order submission failed", "symbol", symbol, "err", err)
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		e.log.Error("order failed after retries", "symbol", symbol, "err", err)
		return fmt.Errorf("submitting order for %s: %w", symbol, err)
	}

	entry := entryHint
	if p, ok := e.CurrentPrice(ctx, symbol, class); ok {
		entry = p
	}

	if _, err := e.trades.SaveTrade(ctx, &domain.Trade{
		SignalID:      signalID,
		BrokerOrderID: order.ID,
		Ticker:        symbol,
		Direction:     dir,
		AssetClass:    class,
		Qty:           qty,
		EntryPrice:    entry,
		Status:        domain.TradeOpen,
	}); err != nil {
		e.log.Error("recording trade failed", "symbol", symbol, "order_id", order.ID, "err", err)
		return fmt.Errorf("recording trade for %s: %w", symbol, err)
	}

	e.log.Info("order submitted",
		"symbol", symbol, "direction", dir, "qty", qty,
		"entry_price", entry, "order_id", order.ID)
	return nil
}
