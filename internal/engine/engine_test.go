package engine

import (
	"context"
	"testing"
	"time"

	"github.com/quadra-systems/hlquad/internal/dataprovider"
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/execution"
	"github.com/quadra-systems/hlquad/internal/position"
	"github.com/quadra-systems/hlquad/internal/risk"
	"github.com/quadra-systems/hlquad/internal/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fixedProvider replays a canned bar sequence, one per NextEvent call.
type fixedProvider struct {
	bars   []eventbus.MarketEvent
	cursor int
}

func (f *fixedProvider) NextEvent(ctx context.Context) (*eventbus.MarketEvent, error) {
	if f.cursor >= len(f.bars) {
		return nil, dataprovider.ErrExhausted
	}
	bar := f.bars[f.cursor]
	f.cursor++
	return &bar, nil
}
func (f *fixedProvider) Close() error { return nil }

func makeBar(close float64, t time.Time) eventbus.MarketEvent {
	c := decimal.NewFromFloat(close)
	return eventbus.MarketEvent{Kind: eventbus.MarketEventBar, Symbol: "ETH", Timestamp: t, Open: c, High: c, Low: c, Close: c, Volume: decimal.NewFromInt(10)}
}

func TestEngineProcessNextEventRunsFullCycleOnCrossover(t *testing.T) {
	base := time.Now()
	// Enough bars to warm up a tiny MA-Crossover (fast=2, slow=3) then cross up.
	prices := []float64{100, 100, 100, 101, 105, 110}
	var bars []eventbus.MarketEvent
	for i, p := range prices {
		bars = append(bars, makeBar(p, base.Add(time.Duration(i)*time.Minute)))
	}

	provider := &fixedProvider{bars: bars}
	strat := strategy.NewMACrossover("ETH", strategy.MACrossoverParams{FastPeriod: 2, SlowPeriod: 3})
	tracker := position.NewTracker()
	riskMgr := risk.NewManager(zap.NewNop(), risk.Config{
		RiskPerTradePct: decimal.NewFromFloat(0.5),
		MaxPositionPct:  decimal.NewFromFloat(0.5),
		Leverage:        decimal.NewFromInt(1),
	}, tracker)
	handler := execution.NewSimulated(decimal.Zero, decimal.Zero)

	eng := New(provider, handler, riskMgr, tracker, []strategy.Strategy{strat}, decimal.NewFromInt(10000))

	var sawFill bool
	for {
		cycle, err := eng.ProcessNextEvent(context.Background())
		if err == dataprovider.ErrExhausted {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cycle.Fills) > 0 {
			sawFill = true
		}
	}

	if !sawFill {
		t.Fatal("expected at least one fill once the crossover strategy signals")
	}

	snapshot := eng.Snapshot()
	if snapshot.TotalBars != int64(len(prices)) {
		t.Fatalf("expected %d bars processed, got %d", len(prices), snapshot.TotalBars)
	}
}
