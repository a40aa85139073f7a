// Package eventbus defines the pipeline event types that flow through the
// trading engine (market data -> signal -> order -> fill) and the discrete
// BotEvent variants an actor broadcasts to observers.
package eventbus

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the signal/order/fill side.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// SignalDirection is the trade direction a strategy signals.
type SignalDirection string

const (
	SignalLong  SignalDirection = "long"
	SignalShort SignalDirection = "short"
	SignalExit  SignalDirection = "exit"
)

// OrderType distinguishes market vs limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// BarSide is the taker side of a Trade market event.
type BarSide string

const (
	BarSideBuy  BarSide = "buy"
	BarSideSell BarSide = "sell"
)

// MarketEventKind discriminates the MarketEvent tagged variant.
type MarketEventKind string

const (
	MarketEventBar   MarketEventKind = "bar"
	MarketEventTrade MarketEventKind = "trade"
	MarketEventQuote MarketEventKind = "quote"
)

// MarketEvent is a tagged variant carrying one of Bar, Trade, or Quote data.
// Only the fields relevant to Kind are populated.
type MarketEvent struct {
	Kind      MarketEventKind
	Symbol    string
	Timestamp time.Time

	// Bar fields.
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal

	// Trade fields.
	Price decimal.Decimal
	Size  decimal.Decimal
	Side  BarSide

	// Quote fields.
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Validate enforces the invariants named in SPEC_FULL §3 for Bar events.
func (e MarketEvent) Validate() error {
	if e.Kind != MarketEventBar {
		return nil
	}
	if e.Open.LessThanOrEqual(decimal.Zero) || e.High.LessThanOrEqual(decimal.Zero) ||
		e.Low.LessThanOrEqual(decimal.Zero) || e.Close.LessThanOrEqual(decimal.Zero) {
		return errEvent("bar OHLC values must be > 0")
	}
	if e.Low.GreaterThan(e.Open) || e.Low.GreaterThan(e.Close) || e.Low.GreaterThan(e.High) {
		return errEvent("bar low must be <= open, close, and high")
	}
	if e.High.LessThan(e.Open) || e.High.LessThan(e.Close) {
		return errEvent("bar high must be >= open and close")
	}
	if e.Volume.LessThan(decimal.Zero) {
		return errEvent("bar volume must be >= 0")
	}
	return nil
}

// NewBarEvent constructs a validated Bar market event.
func NewBarEvent(symbol string, ts time.Time, open, high, low, close, volume decimal.Decimal) (MarketEvent, error) {
	ev := MarketEvent{
		Kind: MarketEventBar, Symbol: symbol, Timestamp: ts,
		Open: open, High: high, Low: low, Close: close, Volume: volume,
	}
	if err := ev.Validate(); err != nil {
		return MarketEvent{}, err
	}
	return ev, nil
}

// SignalEvent is emitted by a Strategy when it observes a tradeable condition.
type SignalEvent struct {
	Symbol    string
	Direction SignalDirection
	Strength  float64
	Price     decimal.Decimal
	Timestamp time.Time
}

// OrderEvent is emitted by a RiskManager for an ExecutionHandler to fill.
type OrderEvent struct {
	Symbol    string
	OrderType OrderType
	Direction Direction
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// FillEvent is the result of executing an OrderEvent.
type FillEvent struct {
	OrderID    string
	Symbol     string
	Direction  Direction
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Commission decimal.Decimal
	Timestamp  time.Time
}

type eventError string

func (e eventError) Error() string { return string(e) }
func errEvent(msg string) error    { return eventError(msg) }
