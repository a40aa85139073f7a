// Package position tracks per-symbol net positions and the realized PnL
// produced as fills accumulate, reduce, close, or reverse them.
package position

import (
	"sync"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

// Position is one symbol's signed net exposure. Quantity is positive for a
// long position, negative for a short one. AvgPrice is meaningful only while
// Quantity is non-zero.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// IsLong reports whether the position is net long.
func (p Position) IsLong() bool { return p.Quantity.GreaterThan(decimal.Zero) }

// UnrealizedPnL marks the position to a price.
func (p Position) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return markPrice.Sub(p.AvgPrice).Mul(p.Quantity)
}

// Tracker maintains the symbol -> Position map for one bot. Adapted from the
// teacher's Portfolio bookkeeping (internal/backtester/portfolio.go), but
// generalized to the full reversal-through-zero state machine that the
// teacher's accumulate/reduce-to-flat logic does not implement (see
// DESIGN.md).
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]Position
}

// NewTracker creates an empty position tracker.
func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]Position)}
}

// Get returns the current position for a symbol and whether one exists.
func (t *Tracker) Get(symbol string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[symbol]
	return p, ok
}

// All returns a snapshot of every open position.
func (t *Tracker) All() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// ProcessFill applies a fill to the tracker and returns the realized PnL, if
// any (nil when the fill only increased exposure). Implements SPEC_FULL §4.2.
func (t *Tracker) ProcessFill(fill eventbus.FillEvent) *decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	signedDelta := fill.Quantity
	if fill.Direction == eventbus.DirectionSell {
		signedDelta = signedDelta.Neg()
	}

	current, exists := t.positions[fill.Symbol]
	if !exists {
		t.positions[fill.Symbol] = Position{
			Symbol:   fill.Symbol,
			Quantity: signedDelta,
			AvgPrice: fill.Price,
		}
		return nil
	}

	Q := current.Quantity
	A := current.AvgPrice
	newQ := Q.Add(signedDelta)

	switch {
	case newQ.IsZero():
		// Flat close: realize PnL on the full |Q| at old avg price.
		pnl := realizedPnL(Q, A, fill.Price, Q.Abs())
		delete(t.positions, fill.Symbol)
		return &pnl

	case sign(newQ) == sign(Q) && newQ.Abs().GreaterThanOrEqual(Q.Abs()):
		// Adding to the same side: quantity-weighted average price.
		newAvg := Q.Abs().Mul(A).Add(fill.Quantity.Mul(fill.Price)).Div(Q.Abs().Add(fill.Quantity))
		t.positions[fill.Symbol] = Position{Symbol: fill.Symbol, Quantity: newQ, AvgPrice: newAvg}
		return nil

	case sign(newQ) == sign(Q) && newQ.Abs().LessThan(Q.Abs()):
		// Reducing the same side: avg price unchanged.
		pnl := realizedPnL(Q, A, fill.Price, fill.Quantity)
		t.positions[fill.Symbol] = Position{Symbol: fill.Symbol, Quantity: newQ, AvgPrice: A}
		return &pnl

	default:
		// Reversal through zero: close the full old side at old avg price,
		// open the remainder at the fill price. One scalar realized PnL is
		// returned for the closed portion, per SPEC_FULL §9.
		pnl := realizedPnL(Q, A, fill.Price, Q.Abs())
		t.positions[fill.Symbol] = Position{Symbol: fill.Symbol, Quantity: newQ, AvgPrice: fill.Price}
		return &pnl
	}
}

// realizedPnL computes the PnL realized by closing qty of a position whose
// prior signed quantity was Q at average price A, at exit price p.
func realizedPnL(Q, A, p, qty decimal.Decimal) decimal.Decimal {
	if Q.GreaterThan(decimal.Zero) {
		return p.Sub(A).Mul(qty)
	}
	return A.Sub(p).Mul(qty)
}

func sign(d decimal.Decimal) int {
	switch {
	case d.GreaterThan(decimal.Zero):
		return 1
	case d.LessThan(decimal.Zero):
		return -1
	default:
		return 0
	}
}
