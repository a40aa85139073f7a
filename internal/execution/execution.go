// Package execution implements the ExecutionHandler contract (SPEC_FULL
// §4.6): turning an OrderEvent into a FillEvent, either instantly against a
// slippage model or by signing and submitting a real order to the exchange.
package execution

import (
	"context"

	"github.com/quadra-systems/hlquad/internal/eventbus"
)

// ExecutionHandler fills orders. A simulated handler never blocks on
// network; a live handler may.
type ExecutionHandler interface {
	ExecuteOrder(ctx context.Context, order eventbus.OrderEvent) (eventbus.FillEvent, error)
}
