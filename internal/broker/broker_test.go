package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"contrabot/internal/domain"
)

func TestSimulatorSubmitAndClose(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()

	order, err := b.SubmitOrder(ctx, OrderRequest{
		Symbol:      "AAPL",
		Qty:         decimal.NewFromInt(5),
		Side:        domain.DirectionLong,
		TimeInForce: TIFDay,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.ID == "" {
		t.Error("SubmitOrder should assign an order ID")
	}
	if got := b.Submitted(); len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Errorf("Submitted = %+v, want one AAPL order", got)
	}

	if err := b.ClosePosition(ctx, "AAPL"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if got := b.Closed(); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("Closed = %v, want [AAPL]", got)
	}
}

func TestSimulatorFailureInjection(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()
	boom := errors.New("venue unavailable")

	b.FailSubmissionsWith(boom)
	if _, err := b.SubmitOrder(ctx, OrderRequest{Symbol: "MSFT", Qty: decimal.NewFromInt(1)}); !errors.Is(err, boom) {
		t.Errorf("SubmitOrder error = %v, want injected failure", err)
	}
	if len(b.Submitted()) != 0 {
		t.Error("failed submission must not be recorded")
	}

	b.FailSubmissionsWith(nil)
	if _, err := b.SubmitOrder(ctx, OrderRequest{Symbol: "MSFT", Qty: decimal.NewFromInt(1)}); err != nil {
		t.Errorf("SubmitOrder after reset: %v", err)
	}
}

func TestSimulatorPricesAndClock(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()

	if _, err := b.LatestPrice(ctx, "AAPL", domain.AssetStock); err == nil {
		t.Error("unknown symbol should return an error")
	}

	b.SetPrice("AAPL", 187.5)
	price, err := b.LatestPrice(ctx, "AAPL", domain.AssetStock)
	if err != nil {
		t.Fatalf("LatestPrice: %v", err)
	}
	if price != 187.5 {
		t.Errorf("LatestPrice = %v, want 187.5", price)
	}

	open, err := b.IsMarketOpen(ctx)
	if err != nil || !open {
		t.Errorf("market should start open, got open=%v err=%v", open, err)
	}
	b.SetMarketOpen(false)
	open, _ = b.IsMarketOpen(ctx)
	if open {
		t.Error("SetMarketOpen(false) should close the market")
	}
}
