package execution

import (
	"context"
	"fmt"

	"github.com/quadra-systems/hlquad/internal/eventbus"
)

// Mode discriminates which concrete handler a Wrapper dispatches to.
type Mode int

const (
	ModeSimulated Mode = iota
	ModeLiveSigned
)

// Wrapper is the tagged-union ExecutionHandler of SPEC_FULL §4.10: only the
// field matching Mode is populated, and ExecuteOrder picks the handler with a
// switch on Mode. The engine stores a Wrapper in its ExecutionHandler
// interface field, so every order still goes through one interface method
// call before that switch.
type Wrapper struct {
	mode       Mode
	simulated  *Simulated
	liveSigned *LiveSigned
}

// NewSimulatedWrapper builds a Wrapper in Simulated mode.
func NewSimulatedWrapper(h *Simulated) Wrapper {
	return Wrapper{mode: ModeSimulated, simulated: h}
}

// NewLiveSignedWrapper builds a Wrapper in LiveSigned mode.
func NewLiveSignedWrapper(h *LiveSigned) Wrapper {
	return Wrapper{mode: ModeLiveSigned, liveSigned: h}
}

// ExecuteOrder dispatches to the active concrete handler.
func (w Wrapper) ExecuteOrder(ctx context.Context, order eventbus.OrderEvent) (eventbus.FillEvent, error) {
	switch w.mode {
	case ModeSimulated:
		return w.simulated.ExecuteOrder(ctx, order)
	case ModeLiveSigned:
		return w.liveSigned.ExecuteOrder(ctx, order)
	default:
		return eventbus.FillEvent{}, fmt.Errorf("execution: unknown dispatch mode %d", w.mode)
	}
}
