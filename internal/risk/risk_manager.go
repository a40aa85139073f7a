// Package risk converts a strategy signal and the current account equity
// into sized orders, enforcing leverage, per-trade, max-position, and
// exchange-minimum-notional constraints (SPEC_FULL §4.4).
package risk

import (
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/position"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultMinNotional is the exchange minimum order value in quote units,
// applied unless a caller configures a different floor.
var defaultMinNotional = decimal.NewFromInt(10)

// quantityPrecision is the number of decimal places order quantities are
// truncated to, per SPEC_FULL §8 boundary behavior.
const quantityPrecision = 8

// Config holds the per-bot sizing parameters. Grounded on the teacher's
// RiskManager field shape (internal/backtester/risk.go) but replacing its
// fixed-fractional/Kelly/volatility methods with the spec's leverage-based
// notional sizing (see DESIGN.md).
type Config struct {
	RiskPerTradePct   decimal.Decimal
	MaxPositionPct    decimal.Decimal
	Leverage          decimal.Decimal
	MinNotional       decimal.Decimal // zero means use defaultMinNotional
	MarginSafetyCheck bool
}

// Manager sizes orders from signals and current equity.
type Manager struct {
	logger      *zap.Logger
	cfg         Config
	tracker     *position.Tracker
	minNotional decimal.Decimal
}

// NewManager constructs a risk manager bound to one bot's position tracker
// (needed to size exit orders against the currently open quantity).
func NewManager(logger *zap.Logger, cfg Config, tracker *position.Tracker) *Manager {
	minNotional := cfg.MinNotional
	if minNotional.IsZero() {
		minNotional = defaultMinNotional
	}
	return &Manager{logger: logger, cfg: cfg, tracker: tracker, minNotional: minNotional}
}

// EvaluateSignal implements SPEC_FULL §4.4. It returns an empty, non-nil
// slice (never an error) when the signal cannot be sized.
func (m *Manager) EvaluateSignal(signal eventbus.SignalEvent, accountEquity decimal.Decimal) ([]eventbus.OrderEvent, error) {
	if signal.Direction == eventbus.SignalExit {
		return m.sizeExit(signal), nil
	}
	return m.sizeEntry(signal, accountEquity), nil
}

func (m *Manager) sizeEntry(signal eventbus.SignalEvent, equity decimal.Decimal) []eventbus.OrderEvent {
	leveragedCapital := equity.Mul(m.cfg.Leverage)
	targetNotional := leveragedCapital.Mul(m.cfg.RiskPerTradePct)
	maxNotional := leveragedCapital.Mul(m.cfg.MaxPositionPct)

	notional := targetNotional
	if maxNotional.LessThan(notional) {
		notional = maxNotional
	}

	if signal.Price.IsZero() {
		return []eventbus.OrderEvent{}
	}

	qty := truncate(notional.Div(signal.Price), quantityPrecision)
	orderValue := qty.Mul(signal.Price)

	if orderValue.LessThan(m.minNotional) {
		m.logger.Warn("order rejected: below exchange minimum notional",
			zap.String("symbol", signal.Symbol),
			zap.String("order_value", orderValue.String()),
			zap.String("min_notional", m.minNotional.String()),
		)
		return []eventbus.OrderEvent{}
	}

	if m.cfg.MarginSafetyCheck && !m.cfg.Leverage.IsZero() {
		requiredMargin := notional.Div(m.cfg.Leverage)
		if requiredMargin.GreaterThan(equity.Mul(decimal.NewFromFloat(0.8))) {
			m.logger.Warn("order rejected: margin safety clamp",
				zap.String("symbol", signal.Symbol),
				zap.String("required_margin", requiredMargin.String()),
			)
			return []eventbus.OrderEvent{}
		}
	}

	direction := eventbus.DirectionBuy
	if signal.Direction == eventbus.SignalShort {
		direction = eventbus.DirectionSell
	}

	return []eventbus.OrderEvent{{
		Symbol:    signal.Symbol,
		OrderType: eventbus.OrderTypeMarket,
		Direction: direction,
		Quantity:  qty,
		Price:     signal.Price,
		Timestamp: signal.Timestamp,
	}}
}

func (m *Manager) sizeExit(signal eventbus.SignalEvent) []eventbus.OrderEvent {
	pos, ok := m.tracker.Get(signal.Symbol)
	if !ok || pos.Quantity.IsZero() {
		return []eventbus.OrderEvent{}
	}

	direction := eventbus.DirectionSell
	if pos.Quantity.LessThan(decimal.Zero) {
		direction = eventbus.DirectionBuy
	}

	return []eventbus.OrderEvent{{
		Symbol:    signal.Symbol,
		OrderType: eventbus.OrderTypeMarket,
		Direction: direction,
		Quantity:  pos.Quantity.Abs(),
		Price:     signal.Price,
		Timestamp: signal.Timestamp,
	}}
}

// truncate rounds a decimal down towards zero to the given number of places,
// implementing SPEC_FULL §8's "(notional/price)*10^8 truncated to integer
// then divided back" quantity-rounding rule.
func truncate(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Truncate(places)
}
