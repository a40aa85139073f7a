package strategy

import (
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/pkg/utils"
	"github.com/shopspring/decimal"
)

// QuadMA is the five-window moving-average crossover strategy of SPEC_FULL
// §4.3: a fast-to-slow stack of four price windows confirmed by a longer
// trend window and, optionally, a volume filter, with per-side TP/SL exit
// gating. Window eviction uses pkg/utils.SMA, the same ring-buffer idiom the
// teacher's BaseStrategy applies to its own indicator windows.
type QuadMA struct {
	symbol string

	w1, w2, w3, w4, trend *utils.SMA
	volume                *utils.SMA

	prevM1, prevM2, prevTrendMA decimal.Decimal
	havePrev                    bool

	volumeFilterEnabled bool
	volumeFactor        decimal.Decimal
	takeProfitPct       decimal.Decimal
	stopLossPct         decimal.Decimal

	longEntry  *decimal.Decimal // entry price of an open long TP/SL watch, nil if none
	shortEntry *decimal.Decimal
}

// QuadMAParams mirror the opaque JSON strategy_params document for "quad_ma".
type QuadMAParams struct {
	P1, P2, P3, P4, TrendPeriod int
	VolumeFilterEnabled         bool
	VolumeFactor                float64
	TakeProfitPct               float64
	StopLossPct                 float64
}

// DefaultQuadMAParams matches the literal periods used in SPEC_FULL's
// end-to-end scenario 1 (5/10/20/50/100).
func DefaultQuadMAParams() QuadMAParams {
	return QuadMAParams{
		P1: 5, P2: 10, P3: 20, P4: 50, TrendPeriod: 100,
		VolumeFilterEnabled: true,
		VolumeFactor:        1.0,
		TakeProfitPct:       0.05,
		StopLossPct:         0.02,
	}
}

// NewQuadMAFromParams is the Registry factory for "quad_ma".
func NewQuadMAFromParams(symbol string, params map[string]any) (Strategy, error) {
	p := DefaultQuadMAParams()
	p.P1 = paramInt(params, "p1", p.P1)
	p.P2 = paramInt(params, "p2", p.P2)
	p.P3 = paramInt(params, "p3", p.P3)
	p.P4 = paramInt(params, "p4", p.P4)
	p.TrendPeriod = paramInt(params, "trend_period", p.TrendPeriod)
	p.VolumeFilterEnabled = paramBool(params, "volume_filter_enabled", p.VolumeFilterEnabled)
	p.VolumeFactor = paramFloat(params, "volume_factor", p.VolumeFactor)
	p.TakeProfitPct = paramFloat(params, "take_profit_pct", p.TakeProfitPct)
	p.StopLossPct = paramFloat(params, "stop_loss_pct", p.StopLossPct)
	return NewQuadMA(symbol, p), nil
}

// NewQuadMA constructs a QuadMA strategy for one symbol.
func NewQuadMA(symbol string, p QuadMAParams) *QuadMA {
	return &QuadMA{
		symbol:              symbol,
		w1:                  utils.NewSMA(p.P1),
		w2:                  utils.NewSMA(p.P2),
		w3:                  utils.NewSMA(p.P3),
		w4:                  utils.NewSMA(p.P4),
		trend:               utils.NewSMA(p.TrendPeriod),
		volume:              utils.NewSMA(p.TrendPeriod),
		volumeFilterEnabled: p.VolumeFilterEnabled,
		volumeFactor:        decimal.NewFromFloat(p.VolumeFactor),
		takeProfitPct:       decimal.NewFromFloat(p.TakeProfitPct),
		stopLossPct:         decimal.NewFromFloat(p.StopLossPct),
	}
}

// Name reports the strategy's static registry name.
func (q *QuadMA) Name() string { return "quad_ma" }

// OnMarketEvent implements SPEC_FULL §4.3 Quad-MA.
func (q *QuadMA) OnMarketEvent(ev eventbus.MarketEvent) (*eventbus.SignalEvent, error) {
	if ev.Kind != eventbus.MarketEventBar || ev.Symbol != q.symbol {
		return nil, nil
	}

	close := ev.Close
	m1 := q.w1.Add(close)
	m2 := q.w2.Add(close)
	m3 := q.w3.Add(close)
	m4 := q.w4.Add(close)
	trendMA := q.trend.Add(close)
	vol := q.volume.Add(ev.Volume)

	if !(q.w1.Full() && q.w2.Full() && q.w3.Full() && q.w4.Full() && q.trend.Full()) {
		return nil, nil
	}

	if !q.havePrev {
		q.prevM1, q.prevM2, q.prevTrendMA = m1, m2, trendMA
		q.havePrev = true
		return nil, nil
	}
	prevM1, prevM2, prevTrendMA := q.prevM1, q.prevM2, q.prevTrendMA
	q.prevM1, q.prevM2, q.prevTrendMA = m1, m2, trendMA

	// Exit check takes priority over a fresh entry signal.
	if q.longEntry != nil {
		entry := *q.longEntry
		tp := entry.Mul(decimal.NewFromInt(1).Add(q.takeProfitPct))
		sl := entry.Mul(decimal.NewFromInt(1).Sub(q.stopLossPct))
		if close.GreaterThanOrEqual(tp) || close.LessThanOrEqual(sl) {
			q.longEntry = nil
			return q.signal(eventbus.SignalExit, close, ev.Timestamp), nil
		}
	}
	if q.shortEntry != nil {
		entry := *q.shortEntry
		tp := entry.Mul(decimal.NewFromInt(1).Sub(q.takeProfitPct))
		sl := entry.Mul(decimal.NewFromInt(1).Add(q.stopLossPct))
		if close.LessThanOrEqual(tp) || close.GreaterThanOrEqual(sl) {
			q.shortEntry = nil
			return q.signal(eventbus.SignalExit, close, ev.Timestamp), nil
		}
	}

	volumeOK := true
	if q.volumeFilterEnabled {
		volumeOK = ev.Volume.GreaterThan(q.volumeFactor.Mul(vol))
	}

	crossedUp := prevM1.LessThanOrEqual(prevM2) && m1.GreaterThan(m2)
	stackedUp := m1.GreaterThan(m3) && m2.GreaterThan(m3) && m1.GreaterThan(m4)
	uptrend := trendMA.GreaterThan(prevTrendMA) && close.GreaterThan(trendMA)

	if q.longEntry == nil && crossedUp && stackedUp && uptrend && volumeOK {
		entry := close
		q.longEntry = &entry
		return q.signal(eventbus.SignalLong, close, ev.Timestamp), nil
	}

	crossedDown := prevM1.GreaterThanOrEqual(prevM2) && m1.LessThan(m2)
	stackedDown := m1.LessThan(m3) && m2.LessThan(m3) && m1.LessThan(m4)
	downtrend := trendMA.LessThan(prevTrendMA) && close.LessThan(trendMA)

	if q.shortEntry == nil && crossedDown && stackedDown && downtrend && volumeOK {
		entry := close
		q.shortEntry = &entry
		return q.signal(eventbus.SignalShort, close, ev.Timestamp), nil
	}

	return nil, nil
}

func (q *QuadMA) signal(dir eventbus.SignalDirection, price decimal.Decimal, ts time.Time) *eventbus.SignalEvent {
	return &eventbus.SignalEvent{
		Symbol:    q.symbol,
		Direction: dir,
		Strength:  1.0,
		Price:     price,
		Timestamp: ts,
	}
}
