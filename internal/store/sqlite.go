package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contrabot/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ PostStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
var _ TradeStore = (*SQLiteStore)(nil)
var _ PendingOrderStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id       TEXT    NOT NULL UNIQUE,
	subreddit     TEXT    NOT NULL,
	title         TEXT,
	body          TEXT,
	author        TEXT,
	created_utc   REAL,
	upvotes       INTEGER DEFAULT 0,
	awards        INTEGER DEFAULT 0,
	processed_at  TEXT,
	filter_passed INTEGER,
	filter_reason TEXT
);

CREATE TABLE IF NOT EXISTS signals (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id         TEXT NOT NULL,
	ticker          TEXT NOT NULL,
	asset_class     TEXT,
	raw_direction   TEXT,
	final_direction TEXT,
	confidence      REAL,
	reasoning       TEXT,
	option_expiry   TEXT,
	option_strike   REAL,
	option_contract TEXT,
	created_at      TEXT
);

CREATE TABLE IF NOT EXISTS trades (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id       INTEGER,
	broker_order_id TEXT,
	ticker          TEXT NOT NULL,
	direction       TEXT,
	asset_class     TEXT,
	qty             REAL,
	entry_price     REAL,
	current_price   REAL,
	pnl             REAL,
	status          TEXT DEFAULT 'open',
	opened_at       TEXT,
	closed_at       TEXT
);

CREATE TABLE IF NOT EXISTS pending_orders (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id   INTEGER,
	ticker      TEXT NOT NULL,
	direction   TEXT,
	qty         REAL,
	asset_class TEXT,
	created_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_posts_post_id  ON posts(post_id);
CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_ticker  ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_status  ON trades(status);
`

// SQLiteStore implements PostStore, SignalStore, TradeStore, and
// PendingOrderStore backed by a SQLite database. database/sql provides the
// connection pool; every write runs in its own transaction so a partially
// applied unit of work is never visible after a crash.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Pragmas go in the DSN so they apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ---------------------------------------------------------------------------
// PostStore implementation
// ---------------------------------------------------------------------------

// SavePost inserts a post with its filter outcome. Re-saving an already
// recorded post is a no-op.
func (s *SQLiteStore) SavePost(ctx context.Context, post *domain.Post, filterPassed bool, filterReason string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		passed := 0
		if filterPassed {
			passed = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO posts
				(post_id, subreddit, title, body, author, created_utc, upvotes, awards,
				 processed_at, filter_passed, filter_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			post.ID, post.Subreddit, post.Title, post.Body, post.Author,
			post.CreatedUTC, post.Upvotes, post.Awards,
			formatTime(time.Now()), passed, filterReason,
		)
		return err
	})
}

// IsPostProcessed reports whether the post has been recorded before.
func (s *SQLiteStore) IsPostProcessed(ctx context.Context, postID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE post_id = ?`, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal and returns its assigned ID.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.TradeSignal) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var expiry sql.NullString
		var strike sql.NullFloat64
		var contract sql.NullString
		if sig.Option != nil {
			expiry = sql.NullString{String: sig.Option.Expiry, Valid: true}
			strike = sql.NullFloat64{Float64: sig.Option.Strike, Valid: true}
			contract = sql.NullString{String: string(sig.Option.ContractType), Valid: true}
		}

		createdAt := sig.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO signals
				(post_id, ticker, asset_class, raw_direction, final_direction,
				 confidence, reasoning, option_expiry, option_strike, option_contract, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sig.PostID, sig.Ticker, string(sig.AssetClass), string(sig.RawDirection),
			string(sig.Direction), sig.Confidence, sig.Reasoning,
			expiry, strike, contract, formatTime(createdAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// HasRecentSignal reports whether a signal other than excludeID was recorded
// for ticker within the lookback window. The cutoff is computed in Go so the
// window is a real configuration knob rather than a SQL literal.
func (s *SQLiteStore) HasRecentSignal(ctx context.Context, ticker string, window time.Duration, excludeID int64) (bool, error) {
	cutoff := formatTime(time.Now().Add(-window))
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM signals
		WHERE ticker = ? AND created_at > ? AND id <> ?
		LIMIT 1`,
		ticker, cutoff, excludeID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// SaveTrade inserts a new trade and returns its assigned ID.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		openedAt := trade.OpenedAt
		if openedAt.IsZero() {
			openedAt = time.Now()
		}
		status := trade.Status
		if status == "" {
			status = domain.TradeOpen
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO trades
				(signal_id, broker_order_id, ticker, direction, asset_class,
				 qty, entry_price, current_price, pnl, status, opened_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trade.SignalID, trade.BrokerOrderID, trade.Ticker, string(trade.Direction),
			string(trade.AssetClass), trade.Qty, trade.EntryPrice, trade.CurrentPrice,
			trade.PnL, string(status), formatTime(openedAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

const tradeColumns = `id, signal_id, broker_order_id, ticker, direction, asset_class,
	qty, entry_price, current_price, pnl, status, opened_at, closed_at`

func scanTrade(row interface{ Scan(...any) error }) (domain.Trade, error) {
	var t domain.Trade
	var direction, assetClass, status string
	var openedAt, closedAt sql.NullString
	var orderID sql.NullString
	var entry, current, pnl sql.NullFloat64

	err := row.Scan(&t.ID, &t.SignalID, &orderID, &t.Ticker, &direction, &assetClass,
		&t.Qty, &entry, &current, &pnl, &status, &openedAt, &closedAt)
	if err != nil {
		return t, err
	}
	t.BrokerOrderID = orderID.String
	t.Direction = domain.Direction(direction)
	t.AssetClass = domain.AssetClass(assetClass)
	t.EntryPrice = entry.Float64
	t.CurrentPrice = current.Float64
	t.PnL = pnl.Float64
	t.Status = domain.TradeStatus(status)
	t.OpenedAt = parseTime(openedAt.String)
	t.ClosedAt = parseTime(closedAt.String)
	return t, nil
}

// GetOpenTrades returns all trades with status open, most recent first.
func (s *SQLiteStore) GetOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' ORDER BY opened_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetOpenTradeForTicker returns the open trade for ticker, or nil when none
// exists.
func (s *SQLiteStore) GetOpenTradeForTicker(ctx context.Context, ticker string) (*domain.Trade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE ticker = ? AND status = 'open'`, ticker)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTradePrice refreshes the current price and unrealized P&L of an open
// trade. Closed trades are never touched.
func (s *SQLiteStore) UpdateTradePrice(ctx context.Context, tradeID int64, currentPrice, pnl float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE trades SET current_price = ?, pnl = ? WHERE id = ? AND status = 'open'`,
			currentPrice, pnl, tradeID)
		return err
	})
}

// CloseTrade marks an open trade closed with its final price and realized
// P&L. The guard on status makes closure idempotent and keeps a closed
// trade's P&L frozen.
func (s *SQLiteStore) CloseTrade(ctx context.Context, tradeID int64, finalPrice, pnl float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE trades
			SET status = 'closed', closed_at = ?, current_price = ?, pnl = ?
			WHERE id = ? AND status = 'open'`,
			formatTime(time.Now()), finalPrice, pnl, tradeID)
		return err
	})
}

// TotalRealizedPnL returns the sum of P&L over all closed trades.
func (s *SQLiteStore) TotalRealizedPnL(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(pnl), 0.0) FROM trades WHERE status = 'closed'`).Scan(&total)
	return total, err
}

// CountOpenTrades returns the number of trades with status open.
func (s *SQLiteStore) CountOpenTrades(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = 'open'`).Scan(&count)
	return count, err
}

// ---------------------------------------------------------------------------
// PendingOrderStore implementation
// ---------------------------------------------------------------------------

// SavePendingOrder enqueues a deferred order and returns its assigned ID.
func (s *SQLiteStore) SavePendingOrder(ctx context.Context, po *domain.PendingOrder) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		createdAt := po.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO pending_orders (signal_id, ticker, direction, qty, asset_class, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			po.SignalID, po.Ticker, string(po.Direction), po.Qty,
			string(po.AssetClass), formatTime(createdAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListPendingOrders returns all queued orders in insertion order, which is
// the resubmission order.
func (s *SQLiteStore) ListPendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, signal_id, ticker, direction, qty, asset_class, created_at
		FROM pending_orders ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.PendingOrder
	for rows.Next() {
		var po domain.PendingOrder
		var direction, assetClass string
		var createdAt sql.NullString
		if err := rows.Scan(&po.ID, &po.SignalID, &po.Ticker, &direction, &po.Qty, &assetClass, &createdAt); err != nil {
			return nil, err
		}
		po.Direction = domain.Direction(direction)
		po.AssetClass = domain.AssetClass(assetClass)
		po.CreatedAt = parseTime(createdAt.String)
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// DeletePendingOrder removes a queued order once it has been submitted.
func (s *SQLiteStore) DeletePendingOrder(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM pending_orders WHERE id = ?`, id)
		return err
	})
}
