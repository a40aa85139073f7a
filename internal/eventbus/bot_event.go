package eventbus

import (
	"time"

	"github.com/shopspring/decimal"
)

// BotEventKind discriminates the discrete events an actor broadcasts to
// observers. Grounded on the teacher's EventType constant set
// (internal/events/event_bus.go), narrowed to the variants SPEC_FULL names.
type BotEventKind string

const (
	BotEventMarketUpdate    BotEventKind = "market_update"
	BotEventSignalGenerated BotEventKind = "signal_generated"
	BotEventOrderPlaced     BotEventKind = "order_placed"
	BotEventOrderFilled     BotEventKind = "order_filled"
	BotEventPositionUpdate  BotEventKind = "position_update"
	BotEventTradeClosed     BotEventKind = "trade_closed"
	BotEventError           BotEventKind = "error"
	// BotEventLagged is synthetic: delivered to a broadcast subscriber whose
	// channel was full, in place of whatever event was dropped for it.
	BotEventLagged BotEventKind = "lagged"
)

// BotEvent is one broadcast item. Only the field matching Kind is populated;
// the struct is intentionally flat rather than an interface hierarchy so it
// can be copied freely across the broadcaster's channels without allocation.
type BotEvent struct {
	Kind        BotEventKind    `json:"kind"`
	Timestamp   time.Time       `json:"timestamp"`
	Symbol      string          `json:"symbol,omitempty"`
	Market      *MarketEvent    `json:"market,omitempty"`
	Signal      *SignalEvent    `json:"signal,omitempty"`
	Order       *OrderEvent     `json:"order,omitempty"`
	Fill        *FillEvent      `json:"fill,omitempty"`
	Quantity    decimal.Decimal `json:"quantity,omitempty"`
	AvgPrice    decimal.Decimal `json:"avgPrice,omitempty"`
	RealizedPnL decimal.Decimal `json:"realizedPnl,omitempty"`
	Message     string          `json:"message,omitempty"`
}
