// Package engine holds the position manager: the single gatekeeper between
// admitted trade signals and the execution adapter. All admission decisions
// run under one mutex so concurrent signals cannot both pass the same
// capacity or duplicate check.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"contrabot/internal/domain"
	"contrabot/internal/executor"
	"contrabot/internal/store"
	"contrabot/internal/util"
)

// OrderExecutor is the slice of the execution adapter the manager needs.
type OrderExecutor interface {
	Execute(ctx context.Context, sig *domain.TradeSignal) error
	CurrentPrice(ctx context.Context, ticker string, class domain.AssetClass) (float64, bool)
	ClosePosition(ctx context.Context, ticker string, class domain.AssetClass) error
}

// Store is the persistence surface the manager needs.
type Store interface {
	store.SignalStore
	store.TradeStore
}

// ManagerConfig carries the admission and reconciliation knobs.
type ManagerConfig struct {
	MaxOpenPositions int
	DedupWindow      time.Duration
	HoldingPeriod    time.Duration
	CheckInterval    time.Duration
}

// Manager admits signals into positions and reconciles open positions
// against the venue on a fixed interval.
type Manager struct {
	store  store.SignalStore
	trades store.TradeStore
	exec   OrderExecutor
	cfg    ManagerConfig
	log    *slog.Logger

	// Serializes the whole check-then-execute admission sequence.
	mu sync.Mutex
}

// NewManager wires a Manager over the given store and executor.
func NewManager(st Store, exec OrderExecutor, cfg ManagerConfig) *Manager {
	return &Manager{
		store:  st,
		trades: st,
		exec:   exec,
		cfg:    cfg,
		log:    slog.Default().With("component", "engine"),
	}
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

// MaybeOpenPosition runs the admission sequence for a persisted signal:
// open-position check, recent-signal dedup, capacity check, then execution.
// It returns true only when an order was submitted or queued. The sequence
// holds the admission mutex end to end.
func (m *Manager) MaybeOpenPosition(ctx context.Context, sig *domain.TradeSignal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := executor.VenueSymbol(sig.Ticker, sig.AssetClass)

	existing, err := m.trades.GetOpenTradeForTicker(ctx, symbol)
	if err != nil {
		m.log.Error("open-position lookup failed, rejecting signal", "ticker", symbol, "err", err)
		return false
	}
	if existing != nil {
		m.log.Info("position already open, skipping signal", "ticker", symbol, "trade_id", existing.ID)
		return false
	}

	// The signal under admission is already persisted; exclude it so it
	// cannot trip its own dedup window.
	recent, err := m.store.HasRecentSignal(ctx, sig.Ticker, m.cfg.DedupWindow, sig.ID)
	if err != nil {
		m.log.Error("dedup lookup failed, rejecting signal", "ticker", sig.Ticker, "err", err)
		return false
	}
	if recent {
		m.log.Info("recent signal exists for ticker, skipping", "ticker", sig.Ticker)
		return false
	}

	count, err := m.trades.CountOpenTrades(ctx)
	if err != nil {
		m.log.Error("open-trade count failed, rejecting signal", "err", err)
		return false
	}
	if count >= m.cfg.MaxOpenPositions {
		m.log.Info("at position capacity, skipping signal",
			"ticker", sig.Ticker, "open", count, "max", m.cfg.MaxOpenPositions)
		return false
	}

	if err := m.exec.Execute(ctx, sig); err != nil {
		if util.IsPermanent(err) {
			m.log.Info("signal not executable", "ticker", sig.Ticker, "err", err)
		} else {
			m.log.Error("execution failed", "ticker", sig.Ticker, "err", err)
		}
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// RunPeriodicChecks refreshes open-position prices and closes stale
// positions on every tick until ctx is cancelled. The first pass runs
// immediately.
func (m *Manager) RunPeriodicChecks(ctx context.Context) {
	m.log.Info("position checks started", "interval", m.cfg.CheckInterval)
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		m.RefreshOpenPositions(ctx)
		m.CloseStalePositions(ctx)

		select {
		case <-ctx.Done():
			m.log.Info("position checks stopped")
			return
		case <-ticker.C:
		}
	}
}

// RefreshOpenPositions re-marks every open trade at the latest venue price.
// Trades with no available quote keep their last recorded mark.
func (m *Manager) RefreshOpenPositions(ctx context.Context) {
	trades, err := m.trades.GetOpenTrades(ctx)
	if err != nil {
		m.log.Error("listing open trades", "err", err)
		return
	}

	for _, t := range trades {
		if ctx.Err() != nil {
			return
		}
		price, ok := m.exec.CurrentPrice(ctx, t.Ticker, t.AssetClass)
		if !ok {
			continue
		}
		pnl := domain.PnL(t.Direction, t.EntryPrice, price, t.Qty)
		if err := m.trades.UpdateTradePrice(ctx, t.ID, price, pnl); err != nil {
			m.log.Error("updating trade price", "trade_id", t.ID, "err", err)
		}
	}
}

// CloseStalePositions flattens every open position held longer than the
// holding period. A venue failure leaves the trade open for the next pass.
func (m *Manager) CloseStalePositions(ctx context.Context) {
	trades, err := m.trades.GetOpenTrades(ctx)
	if err != nil {
		m.log.Error("listing open trades", "err", err)
		return
	}

	cutoff := time.Now().Add(-m.cfg.HoldingPeriod)
	for _, t := range trades {
		if ctx.Err() != nil {
			return
		}
		if !t.OpenedAt.Before(cutoff) {
			continue
		}

		m.log.Info("position exceeded holding period, closing",
			"ticker", t.Ticker, "opened_at", t.OpenedAt)
		if err := m.exec.ClosePosition(ctx, t.Ticker, t.AssetClass); err != nil {
			// Stays open; retried on the next pass.
			continue
		}

		final, _ := m.exec.CurrentPrice(ctx, t.Ticker, t.AssetClass)
		pnl := domain.PnL(t.Direction, t.EntryPrice, final, t.Qty)
		if err := m.trades.CloseTrade(ctx, t.ID, final, pnl); err != nil {
			m.log.Error("recording trade close", "trade_id", t.ID, "err", err)
			continue
		}
		m.log.Info("closed stale position", "ticker", t.Ticker, "pnl", pnl)
	}
}

// ---------------------------------------------------------------------------
// Summary
// ---------------------------------------------------------------------------

// Summary reports open positions, realized P&L across closed trades, and
// unrealized P&L over open trades at their last recorded marks.
func (m *Manager) Summary(ctx context.Context) (*domain.Summary, error) {
	open, err := m.trades.GetOpenTrades(ctx)
	if err != nil {
		return nil, err
	}
	realized, err := m.trades.TotalRealizedPnL(ctx)
	if err != nil {
		return nil, err
	}

	var unrealized float64
	for _, t := range open {
		unrealized += t.PnL
	}
	return &domain.Summary{
		OpenCount:     len(open),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		OpenTrades:    open,
	}, nil
}
