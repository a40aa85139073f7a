package position

import (
	"testing"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

func fill(symbol string, dir eventbus.Direction, qty, price float64) eventbus.FillEvent {
	return eventbus.FillEvent{
		OrderID:   "ord",
		Symbol:    symbol,
		Direction: dir,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		Timestamp: time.Now(),
	}
}

func TestProcessFillOpensPosition(t *testing.T) {
	tr := NewTracker()
	pnl := tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 100))
	if pnl != nil {
		t.Fatalf("expected no realized PnL on open, got %v", pnl)
	}
	p, ok := tr.Get("ETH")
	if !ok {
		t.Fatal("expected position to exist")
	}
	if !p.Quantity.Equal(decimal.NewFromFloat(1)) || !p.AvgPrice.Equal(decimal.NewFromFloat(100)) {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestProcessFillAccumulateWeightedAverage(t *testing.T) {
	tr := NewTracker()
	tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 100))
	tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 110))

	p, _ := tr.Get("ETH")
	want := decimal.NewFromFloat(105)
	if !p.AvgPrice.Equal(want) {
		t.Fatalf("avg price = %s, want %s", p.AvgPrice, want)
	}
	if !p.Quantity.Equal(decimal.NewFromFloat(2)) {
		t.Fatalf("quantity = %s, want 2", p.Quantity)
	}
}

// TestProcessFillReversalThroughZero implements scenario 3 of SPEC_FULL §8:
// Buy 1 @ 100; Sell 1.5 @ 110 realizes 10 on the closed portion and leaves a
// short 0.5 @ 110.
func TestProcessFillReversalThroughZero(t *testing.T) {
	tr := NewTracker()
	tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 100))
	pnl := tr.ProcessFill(fill("ETH", eventbus.DirectionSell, 1.5, 110))

	if pnl == nil {
		t.Fatal("expected realized PnL on reversal")
	}
	want := decimal.NewFromFloat(10)
	if !pnl.Equal(want) {
		t.Fatalf("realized PnL = %s, want %s", pnl, want)
	}

	p, ok := tr.Get("ETH")
	if !ok {
		t.Fatal("expected a remaining short position")
	}
	if !p.Quantity.Equal(decimal.NewFromFloat(-0.5)) {
		t.Fatalf("quantity = %s, want -0.5", p.Quantity)
	}
	if !p.AvgPrice.Equal(decimal.NewFromFloat(110)) {
		t.Fatalf("avg price = %s, want 110", p.AvgPrice)
	}
}

func TestProcessFillFlatCloseRemovesEntry(t *testing.T) {
	tr := NewTracker()
	tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 100))
	pnl := tr.ProcessFill(fill("ETH", eventbus.DirectionSell, 1, 120))

	if pnl == nil || !pnl.Equal(decimal.NewFromFloat(20)) {
		t.Fatalf("realized PnL = %v, want 20", pnl)
	}
	if _, ok := tr.Get("ETH"); ok {
		t.Fatal("expected position to be removed after flat close")
	}
}

func TestProcessFillReduceSameSideAvgPriceUnchanged(t *testing.T) {
	tr := NewTracker()
	tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 2, 100))
	pnl := tr.ProcessFill(fill("ETH", eventbus.DirectionSell, 1, 110))

	if pnl == nil || !pnl.Equal(decimal.NewFromFloat(10)) {
		t.Fatalf("realized PnL = %v, want 10", pnl)
	}
	p, ok := tr.Get("ETH")
	if !ok {
		t.Fatal("expected remaining position")
	}
	if !p.Quantity.Equal(decimal.NewFromFloat(1)) || !p.AvgPrice.Equal(decimal.NewFromFloat(100)) {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestProcessFillShortSideRealizedPnL(t *testing.T) {
	tr := NewTracker()
	tr.ProcessFill(fill("ETH", eventbus.DirectionSell, 1, 100))
	pnl := tr.ProcessFill(fill("ETH", eventbus.DirectionBuy, 1, 90))

	if pnl == nil || !pnl.Equal(decimal.NewFromFloat(10)) {
		t.Fatalf("realized PnL = %v, want 10 (short covered at a profit)", pnl)
	}
}
