// Package store defines storage interfaces for persisting and retrieving
// posts, signals, trades, and queued orders, together with a SQLite
// implementation that is the engine's single source of truth across
// restarts.
package store

import (
	"context"
	"time"

	"contrabot/internal/domain"
)

// PostStore records every ingested post and its filter outcome for audit.
type PostStore interface {
	// SavePost inserts a post with its filter outcome. Saving the same post
	// twice is a no-op.
	SavePost(ctx context.Context, post *domain.Post, filterPassed bool, filterReason string) error

	// IsPostProcessed reports whether the post has been seen before.
	IsPostProcessed(ctx context.Context, postID string) (bool, error)
}

// SignalStore persists extracted trade signals.
type SignalStore interface {
	// SaveSignal inserts a new signal and returns its assigned ID.
	SaveSignal(ctx context.Context, sig *domain.TradeSignal) (int64, error)

	// HasRecentSignal reports whether a signal other than excludeID was
	// recorded for ticker within the lookback window.
	HasRecentSignal(ctx context.Context, ticker string, window time.Duration, excludeID int64) (bool, error)
}

// TradeStore persists trades through their open → closed lifecycle.
type TradeStore interface {
	// SaveTrade inserts a new trade and returns its assigned ID.
	SaveTrade(ctx context.Context, trade *domain.Trade) (int64, error)

	// GetOpenTrades returns all trades with status open, most recent first.
	GetOpenTrades(ctx context.Context) ([]domain.Trade, error)

	// GetOpenTradeForTicker returns the open trade for ticker, or nil.
	GetOpenTradeForTicker(ctx context.Context, ticker string) (*domain.Trade, error)

	// UpdateTradePrice refreshes the current price and unrealized P&L of an
	// open trade.
	UpdateTradePrice(ctx context.Context, tradeID int64, currentPrice, pnl float64) error

	// CloseTrade marks a trade closed with its final price and realized P&L.
	CloseTrade(ctx context.Context, tradeID int64, finalPrice, pnl float64) error

	// TotalRealizedPnL returns the sum of P&L over all closed trades.
	TotalRealizedPnL(ctx context.Context) (float64, error)

	// CountOpenTrades returns the number of trades with status open.
	CountOpenTrades(ctx context.Context) (int, error)
}

// PendingOrderStore is a FIFO queue of deferred stock orders.
type PendingOrderStore interface {
	// SavePendingOrder enqueues an order and returns its assigned ID.
	SavePendingOrder(ctx context.Context, po *domain.PendingOrder) (int64, error)

	// ListPendingOrders returns all queued orders in insertion order.
	ListPendingOrders(ctx context.Context) ([]domain.PendingOrder, error)

	// DeletePendingOrder removes a queued order after successful submission.
	DeletePendingOrder(ctx context.Context, id int64) error
}
