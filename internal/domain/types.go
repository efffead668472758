// Package domain defines the shared data types for the contrabot trading
// pipeline: incoming posts, extracted trade signals, and the trades and
// queued orders the engine owns.
package domain

import "time"

// AssetClass identifies the kind of instrument a signal refers to.
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetCrypto AssetClass = "crypto"
	AssetOption AssetClass = "option"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Invert returns the opposite direction.
func (d Direction) Invert() Direction {
	if d == DirectionShort {
		return DirectionLong
	}
	return DirectionShort
}

// TradeStatus is the lifecycle state of a Trade. Transitions only
// open → closed, once.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// ContractType is the option contract kind.
type ContractType string

const (
	ContractCall ContractType = "call"
	ContractPut  ContractType = "put"
)

// Invert returns the opposite contract type.
func (c ContractType) Invert() ContractType {
	if c == ContractPut {
		return ContractCall
	}
	return ContractPut
}

// OptionLeg holds the contract details of an option signal.
type OptionLeg struct {
	Expiry       string // YYYY-MM-DD
	Strike       float64
	ContractType ContractType
}

// Post is a deduplicated raw item from the feed. The engine records every
// post together with its filter outcome for audit, pass or fail.
type Post struct {
	ID         string
	Subreddit  string
	Title      string
	Body       string
	URL        string
	Author     string
	Karma      int
	KarmaKnown bool // false when the source could not provide a reputation score
	CreatedUTC float64
	Upvotes    int
	Awards     int
	IsSelf     bool // true = text post, false = link post
}

// TradeSignal is a structured trade intent extracted from a post. It is
// immutable once handed to the engine; sentiment inversion produces a copy.
type TradeSignal struct {
	ID           int64 // set after the signal is persisted
	PostID       string
	Ticker       string
	AssetClass   AssetClass
	Direction    Direction // post-inversion
	RawDirection Direction // as extracted, before inversion
	Confidence   float64   // 0.0 – 1.0
	Reasoning    string
	Option       *OptionLeg // only for AssetOption
	CreatedAt    time.Time
}

// Trade is a brokerage order accepted by the venue, tracked to closure.
type Trade struct {
	ID            int64
	SignalID      int64
	BrokerOrderID string
	Ticker        string
	Direction     Direction
	AssetClass    AssetClass
	Qty           float64
	EntryPrice    float64
	CurrentPrice  float64
	PnL           float64
	Status        TradeStatus
	OpenedAt      time.Time
	ClosedAt      time.Time // zero while open
}

// PendingOrder is a stock order deferred because the market was closed,
// queued for resubmission at the next open. Rows form a FIFO queue.
type PendingOrder struct {
	ID         int64
	SignalID   int64
	Ticker     string
	Direction  Direction
	Qty        float64
	AssetClass AssetClass
	CreatedAt  time.Time
}

// Summary is a point-in-time snapshot of the engine's positions.
type Summary struct {
	OpenCount     int
	RealizedPnL   float64
	UnrealizedPnL float64
	OpenTrades    []Trade
}

// PnL computes profit and loss for a position: (current − entry) × qty for
// longs, (entry − current) × qty for shorts.
func PnL(dir Direction, entry, current, qty float64) float64 {
	if dir == DirectionShort {
		return (entry - current) * qty
	}
	return (current - entry) * qty
}
