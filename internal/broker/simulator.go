package broker

import (
	"context"
	"fmt"
	"sync"

	"contrabot/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements Broker in memory for tests and dry runs. Prices
// and market state are set by the caller; submissions and closes are
// recorded for inspection.
type SimulatorBroker struct {
	mu sync.Mutex

	marketOpen bool
	optionsOK  bool
	prices     map[string]float64

	submitErr error // next SubmitOrder error, if set
	closeErr  error // next ClosePosition error, if set

	submitted []OrderRequest
	closed    []string
	nextID    int
}

// NewSimulatorBroker creates a SimulatorBroker with an open market and no
// known prices.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{
		marketOpen: true,
		prices:     make(map[string]float64),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SetMarketOpen toggles the simulated equity market clock.
func (b *SimulatorBroker) SetMarketOpen(open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marketOpen = open
}

// SetOptionsSupported toggles simulated options approval.
func (b *SimulatorBroker) SetOptionsSupported(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.optionsOK = ok
}

// SetPrice sets the quote returned for a venue symbol.
func (b *SimulatorBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

// FailSubmissionsWith makes every subsequent SubmitOrder return err; pass
// nil to restore normal behaviour.
func (b *SimulatorBroker) FailSubmissionsWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
}

// FailClosesWith makes every subsequent ClosePosition return err; pass nil
// to restore normal behaviour.
func (b *SimulatorBroker) FailClosesWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeErr = err
}

// Submitted returns a copy of all accepted order requests.
func (b *SimulatorBroker) Submitted() []OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]OrderRequest, len(b.submitted))
	copy(out, b.submitted)
	return out
}

// Closed returns a copy of all symbols flattened so far.
func (b *SimulatorBroker) Closed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.closed))
	copy(out, b.closed)
	return out
}

// IsMarketOpen reports the simulated clock state.
func (b *SimulatorBroker) IsMarketOpen(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marketOpen, nil
}

// LatestPrice returns the configured quote or an error for unknown symbols.
func (b *SimulatorBroker) LatestPrice(_ context.Context, symbol string, _ domain.AssetClass) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, ok := b.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return price, nil
}

// SubmitOrder records the request and returns a synthetic order ID.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, req OrderRequest) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.nextID++
	b.submitted = append(b.submitted, req)
	return &Order{ID: fmt.Sprintf("sim-%d", b.nextID)}, nil
}

// ClosePosition records the flatten request.
func (b *SimulatorBroker) ClosePosition(_ context.Context, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return b.closeErr
	}
	b.closed = append(b.closed, symbol)
	return nil
}

// SupportsOptions reports the simulated options approval.
func (b *SimulatorBroker) SupportsOptions(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.optionsOK, nil
}
