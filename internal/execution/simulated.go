package execution

import (
	"context"

	"github.com/google/uuid"
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

// tenThousand is the basis-point divisor used throughout slippage math.
var tenThousand = decimal.NewFromInt(10000)

// Simulated produces instant, slippage-adjusted fills with no network I/O.
// Used for both historical backtest replay and paper trading against a live
// feed, per SPEC_FULL §4.6. Grounded on the teacher's execution/executor.go
// fill-construction shape, with the teacher's multi-factor
// commission/spread/market-impact/MEV cost model (execution_model.go)
// replaced by the spec's flat commission_rate + slippage_bps formula (see
// DESIGN.md).
type Simulated struct {
	CommissionRate decimal.Decimal
	SlippageBps    decimal.Decimal
}

// NewSimulated constructs a Simulated handler from the paper/backtest
// commission and slippage configuration.
func NewSimulated(commissionRate, slippageBps decimal.Decimal) *Simulated {
	return &Simulated{CommissionRate: commissionRate, SlippageBps: slippageBps}
}

// ExecuteOrder fills order instantly at a slippage-adjusted price.
func (s *Simulated) ExecuteOrder(ctx context.Context, order eventbus.OrderEvent) (eventbus.FillEvent, error) {
	fillPrice := s.adjustedPrice(order)
	commission := fillPrice.Mul(order.Quantity).Mul(s.CommissionRate)

	return eventbus.FillEvent{
		OrderID:    uuid.NewString(),
		Symbol:     order.Symbol,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: commission,
		Timestamp:  order.Timestamp,
	}, nil
}

// adjustedPrice applies directional slippage: buys fill worse (higher),
// sells fill worse (lower), per SPEC_FULL §4.6.
func (s *Simulated) adjustedPrice(order eventbus.OrderEvent) decimal.Decimal {
	factor := s.SlippageBps.Div(tenThousand)
	if order.Direction == eventbus.DirectionBuy {
		return order.Price.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return order.Price.Mul(decimal.NewFromInt(1).Sub(factor))
}
