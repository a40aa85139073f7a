package strategy

import (
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/pkg/utils"
	"github.com/shopspring/decimal"
)

// MACrossover is the unfiltered two-window baseline strategy of SPEC_FULL
// §4.3: Long when the fast window crosses above the slow one, Short on the
// reverse crossing. No stacking, trend, volume, or TP/SL gating.
type MACrossover struct {
	symbol string
	fast   *utils.SMA
	slow   *utils.SMA

	havePrev           bool
	prevFast, prevSlow decimal.Decimal
}

// MACrossoverParams mirror the opaque JSON strategy_params document for
// "ma_crossover".
type MACrossoverParams struct {
	FastPeriod int
	SlowPeriod int
}

// DefaultMACrossoverParams is a conventional 10/30 fast/slow pairing.
func DefaultMACrossoverParams() MACrossoverParams {
	return MACrossoverParams{FastPeriod: 10, SlowPeriod: 30}
}

// NewMACrossoverFromParams is the Registry factory for "ma_crossover".
func NewMACrossoverFromParams(symbol string, params map[string]any) (Strategy, error) {
	p := DefaultMACrossoverParams()
	p.FastPeriod = paramInt(params, "fast_period", p.FastPeriod)
	p.SlowPeriod = paramInt(params, "slow_period", p.SlowPeriod)
	return NewMACrossover(symbol, p), nil
}

// NewMACrossover constructs an MACrossover strategy for one symbol.
func NewMACrossover(symbol string, p MACrossoverParams) *MACrossover {
	return &MACrossover{
		symbol: symbol,
		fast:   utils.NewSMA(p.FastPeriod),
		slow:   utils.NewSMA(p.SlowPeriod),
	}
}

// Name reports the strategy's static registry name.
func (m *MACrossover) Name() string { return "ma_crossover" }

// OnMarketEvent implements SPEC_FULL §4.3 MA-Crossover.
func (m *MACrossover) OnMarketEvent(ev eventbus.MarketEvent) (*eventbus.SignalEvent, error) {
	if ev.Kind != eventbus.MarketEventBar || ev.Symbol != m.symbol {
		return nil, nil
	}

	fast := m.fast.Add(ev.Close)
	slow := m.slow.Add(ev.Close)

	if !(m.fast.Full() && m.slow.Full()) {
		return nil, nil
	}

	if !m.havePrev {
		m.prevFast, m.prevSlow = fast, slow
		m.havePrev = true
		return nil, nil
	}
	prevFast, prevSlow := m.prevFast, m.prevSlow
	m.prevFast, m.prevSlow = fast, slow

	crossedUp := prevFast.LessThanOrEqual(prevSlow) && fast.GreaterThan(slow)
	crossedDown := prevFast.GreaterThanOrEqual(prevSlow) && fast.LessThan(slow)

	switch {
	case crossedUp:
		return &eventbus.SignalEvent{Symbol: m.symbol, Direction: eventbus.SignalLong, Strength: 1.0, Price: ev.Close, Timestamp: ev.Timestamp}, nil
	case crossedDown:
		return &eventbus.SignalEvent{Symbol: m.symbol, Direction: eventbus.SignalShort, Strength: 1.0, Price: ev.Close, Timestamp: ev.Timestamp}, nil
	default:
		return nil, nil
	}
}
