package execution

import (
	"context"
	"testing"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

func TestSimulatedBuyFillsAboveRequestedPrice(t *testing.T) {
	s := NewSimulated(decimal.NewFromFloat(0.00025), decimal.NewFromInt(10))
	order := eventbus.OrderEvent{
		Symbol: "ETH", OrderType: eventbus.OrderTypeMarket, Direction: eventbus.DirectionBuy,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(2000), Timestamp: time.Now(),
	}
	fill, err := s.ExecuteOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.OrderID == "" {
		t.Fatal("expected a generated order id")
	}
	// 2000 * (1 + 10/10000) = 2002
	expectedPrice := decimal.NewFromInt(2002)
	if !fill.Price.Equal(expectedPrice) {
		t.Fatalf("expected fill price %s, got %s", expectedPrice, fill.Price)
	}
	expectedCommission := expectedPrice.Mul(decimal.NewFromInt(1)).Mul(decimal.NewFromFloat(0.00025))
	if !fill.Commission.Equal(expectedCommission) {
		t.Fatalf("expected commission %s, got %s", expectedCommission, fill.Commission)
	}
}

func TestSimulatedSellFillsBelowRequestedPrice(t *testing.T) {
	s := NewSimulated(decimal.Zero, decimal.NewFromInt(10))
	order := eventbus.OrderEvent{
		Symbol: "ETH", Direction: eventbus.DirectionSell,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(2000), Timestamp: time.Now(),
	}
	fill, err := s.ExecuteOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedPrice := decimal.NewFromInt(1998)
	if !fill.Price.Equal(expectedPrice) {
		t.Fatalf("expected fill price %s, got %s", expectedPrice, fill.Price)
	}
}

func TestDispatcherWrapperRoutesToSimulated(t *testing.T) {
	w := NewSimulatedWrapper(NewSimulated(decimal.Zero, decimal.Zero))
	order := eventbus.OrderEvent{Symbol: "ETH", Direction: eventbus.DirectionBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Timestamp: time.Now()}
	fill, err := w.ExecuteOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fill.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected unmodified fill price, got %s", fill.Price)
	}
}
