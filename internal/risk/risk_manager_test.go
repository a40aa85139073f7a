package risk

import (
	"testing"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/position"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testManager(t *testing.T, cfg Config) (*Manager, *position.Tracker) {
	t.Helper()
	tracker := position.NewTracker()
	return NewManager(zap.NewNop(), cfg, tracker), tracker
}

func TestEvaluateSignalSizesEntryWithinRiskBounds(t *testing.T) {
	cfg := Config{
		RiskPerTradePct: decimal.NewFromFloat(0.02),
		MaxPositionPct:  decimal.NewFromFloat(0.5),
		Leverage:        decimal.NewFromInt(10),
	}
	m, _ := testManager(t, cfg)

	signal := eventbus.SignalEvent{
		Symbol: "ETH", Direction: eventbus.SignalLong, Strength: 1.0,
		Price: decimal.NewFromInt(2000), Timestamp: time.Now(),
	}
	orders, err := m.EvaluateSignal(signal, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	order := orders[0]
	if order.Direction != eventbus.DirectionBuy {
		t.Fatalf("expected buy order, got %s", order.Direction)
	}
	// leveraged_capital = 100000, target_notional = 2000, qty = 1
	expectedQty := decimal.NewFromInt(1)
	if !order.Quantity.Equal(expectedQty) {
		t.Fatalf("expected quantity %s, got %s", expectedQty, order.Quantity)
	}
}

func TestEvaluateSignalRejectsBelowMinNotional(t *testing.T) {
	cfg := Config{
		RiskPerTradePct: decimal.NewFromFloat(0.0001),
		MaxPositionPct:  decimal.NewFromFloat(0.5),
		Leverage:        decimal.NewFromInt(1),
	}
	m, _ := testManager(t, cfg)

	signal := eventbus.SignalEvent{
		Symbol: "ETH", Direction: eventbus.SignalLong,
		Price: decimal.NewFromInt(2000), Timestamp: time.Now(),
	}
	orders, err := m.EvaluateSignal(signal, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected order rejected below minimum notional, got %+v", orders)
	}
}

func TestEvaluateSignalClampsToMaxPosition(t *testing.T) {
	cfg := Config{
		RiskPerTradePct: decimal.NewFromFloat(0.9),
		MaxPositionPct:  decimal.NewFromFloat(0.1),
		Leverage:        decimal.NewFromInt(1),
	}
	m, _ := testManager(t, cfg)

	signal := eventbus.SignalEvent{
		Symbol: "ETH", Direction: eventbus.SignalLong,
		Price: decimal.NewFromInt(100), Timestamp: time.Now(),
	}
	orders, err := m.EvaluateSignal(signal, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// max_notional = 10000*0.1 = 1000, qty = 10, well under target_notional's 90 qty
	expectedQty := decimal.NewFromInt(10)
	if !orders[0].Quantity.Equal(expectedQty) {
		t.Fatalf("expected clamped quantity %s, got %s", expectedQty, orders[0].Quantity)
	}
}

func TestEvaluateSignalExitClosesOpenPosition(t *testing.T) {
	cfg := Config{
		RiskPerTradePct: decimal.NewFromFloat(0.02),
		MaxPositionPct:  decimal.NewFromFloat(0.5),
		Leverage:        decimal.NewFromInt(1),
	}
	m, tracker := testManager(t, cfg)

	fill := eventbus.FillEvent{
		Symbol: "ETH", Direction: eventbus.DirectionBuy,
		Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(2000),
		Timestamp: time.Now(),
	}
	tracker.ProcessFill(fill)

	signal := eventbus.SignalEvent{Symbol: "ETH", Direction: eventbus.SignalExit, Price: decimal.NewFromInt(2100), Timestamp: time.Now()}
	orders, err := m.EvaluateSignal(signal, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 closing order, got %d", len(orders))
	}
	if orders[0].Direction != eventbus.DirectionSell {
		t.Fatalf("expected sell to close a long, got %s", orders[0].Direction)
	}
	if !orders[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected closing quantity 2, got %s", orders[0].Quantity)
	}
}

func TestEvaluateSignalExitWithNoPositionIsNoOp(t *testing.T) {
	cfg := Config{RiskPerTradePct: decimal.NewFromFloat(0.02), MaxPositionPct: decimal.NewFromFloat(0.5), Leverage: decimal.NewFromInt(1)}
	m, _ := testManager(t, cfg)

	signal := eventbus.SignalEvent{Symbol: "ETH", Direction: eventbus.SignalExit, Price: decimal.NewFromInt(2100), Timestamp: time.Now()}
	orders, err := m.EvaluateSignal(signal, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders without an open position, got %+v", orders)
	}
}
