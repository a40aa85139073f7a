package strategy

import (
	"testing"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

func bar(symbol string, t time.Time, close, volume float64) eventbus.MarketEvent {
	c := decimal.NewFromFloat(close)
	return eventbus.MarketEvent{
		Kind: eventbus.MarketEventBar, Symbol: symbol, Timestamp: t,
		Open: c, High: c, Low: c, Close: c, Volume: decimal.NewFromFloat(volume),
	}
}

// TestQuadMANoSignalBeforeWarmup implements SPEC_FULL §8 invariant 6: no
// signal before the trend window (the longest) is fully populated.
func TestQuadMANoSignalBeforeWarmup(t *testing.T) {
	q := NewQuadMA("ETH", QuadMAParams{P1: 2, P2: 3, P3: 4, P4: 5, TrendPeriod: 6, VolumeFilterEnabled: false, TakeProfitPct: 0.05, StopLossPct: 0.02})

	base := time.Now()
	for i := 0; i < 5; i++ {
		sig, err := q.OnMarketEvent(bar("ETH", base.Add(time.Duration(i)*time.Minute), 100+float64(i), 10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sig != nil {
			t.Fatalf("unexpected signal before warmup at bar %d: %+v", i, sig)
		}
	}
}

func TestQuadMAEmitsLongOnUptrendCrossover(t *testing.T) {
	q := NewQuadMA("ETH", QuadMAParams{P1: 2, P2: 3, P3: 4, P4: 5, TrendPeriod: 5, VolumeFilterEnabled: false, TakeProfitPct: 0.5, StopLossPct: 0.2})

	base := time.Now()
	prices := []float64{100, 100, 100, 100, 100, 101, 103, 106, 110, 115, 121, 128}
	var lastSignal *eventbus.SignalEvent
	for i, p := range prices {
		sig, err := q.OnMarketEvent(bar("ETH", base.Add(time.Duration(i)*time.Minute), p, 10))
		if err != nil {
			t.Fatalf("unexpected error at bar %d: %v", i, err)
		}
		if sig != nil {
			lastSignal = sig
		}
	}
	if lastSignal == nil {
		t.Fatal("expected a long signal to eventually fire on a sustained uptrend")
	}
	if lastSignal.Direction != eventbus.SignalLong {
		t.Fatalf("expected Long signal, got %s", lastSignal.Direction)
	}
}

func TestQuadMAIgnoresOtherSymbols(t *testing.T) {
	q := NewQuadMA("ETH", DefaultQuadMAParams())
	sig, err := q.OnMarketEvent(bar("BTC", time.Now(), 100, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected no signal for a non-matching symbol, got %+v", sig)
	}
}
