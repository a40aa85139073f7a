package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/signer"
)

// orderAction is the one-order "order" action payload shape Hyperliquid's
// /exchange endpoint expects, per SPEC_FULL §4.6.
type orderAction struct {
	Type     string       `json:"type"`
	Orders   []orderEntry `json:"orders"`
	Grouping string       `json:"grouping"`
}

type orderEntry struct {
	Asset      int         `json:"a"`
	IsBuy      bool        `json:"b"`
	Price      string      `json:"p"`
	Size       string      `json:"s"`
	ReduceOnly bool        `json:"r"`
	OrderType  orderTypeTF `json:"t"`
}

type orderTypeTF struct {
	Limit limitTIF `json:"limit"`
}

type limitTIF struct {
	TIF string `json:"tif"`
}

// LiveSigned submits real orders to Hyperliquid via an authenticated,
// rate-limited client. Reduce-only and time-in-force are fixed (false,
// "Gtc") per SPEC_FULL §4.6 -- this implementation never resolves to a
// reduce-only or post-only order.
type LiveSigned struct {
	client    *signer.Client
	isMainnet bool
}

// NewLiveSigned constructs a LiveSigned handler over an already-constructed,
// asset-index-resolved signer client.
func NewLiveSigned(client *signer.Client, isMainnet bool) *LiveSigned {
	return &LiveSigned{client: client, isMainnet: isMainnet}
}

// ExecuteOrder signs and submits order, returning a FillEvent built from the
// resting order id once the exchange accepts it.
//
// Hyperliquid does not report partial fill state in the order-placement
// response; this handler treats order as filled at the requested price,
// matching SPEC_FULL's explicit partial-fill non-goal.
func (l *LiveSigned) ExecuteOrder(ctx context.Context, order eventbus.OrderEvent) (eventbus.FillEvent, error) {
	assetIndex, ok := l.client.AssetIndex(order.Symbol)
	if !ok {
		return eventbus.FillEvent{}, fmt.Errorf("execution: no asset index resolved for %s", order.Symbol)
	}

	action := orderAction{
		Type: "order",
		Orders: []orderEntry{{
			Asset:      assetIndex,
			IsBuy:      order.Direction == eventbus.DirectionBuy,
			Price:      order.Price.String(),
			Size:       order.Quantity.String(),
			ReduceOnly: false,
			OrderType:  orderTypeTF{Limit: limitTIF{TIF: "Gtc"}},
		}},
		Grouping: "na",
	}

	oid, err := l.client.PostSigned(ctx, "/exchange", action, l.isMainnet)
	if err != nil {
		return eventbus.FillEvent{}, fmt.Errorf("execution: submit order: %w", err)
	}

	return eventbus.FillEvent{
		OrderID:   fmt.Sprintf("%d", oid),
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Quantity:  order.Quantity,
		Price:     order.Price,
		Timestamp: time.Now().UTC(),
	}, nil
}
