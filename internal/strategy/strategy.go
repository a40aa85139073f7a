// Package strategy implements the Strategy contract (SPEC_FULL §4.1, §4.3):
// stateful window buffers that turn a stream of market events into directional
// signals. Grounded on the teacher's internal/strategy/strategy.go -- the
// BaseStrategy ring-buffer eviction idiom and the StrategyRegistry
// factory-by-name map are kept; the indicator/entry logic is replaced with
// the Quad-MA and MA-Crossover algorithms SPEC_FULL names.
package strategy

import (
	"fmt"

	"github.com/quadra-systems/hlquad/internal/eventbus"
)

// Strategy turns market events into signals. Implementations must be
// deterministic given their prior state and the event sequence.
type Strategy interface {
	Name() string
	OnMarketEvent(ev eventbus.MarketEvent) (*eventbus.SignalEvent, error)
}

// Factory constructs a Strategy from its opaque JSON parameters.
type Factory func(symbol string, params map[string]any) (Strategy, error)

// Registry resolves a strategy by name at bot-spawn time.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry pre-populated with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("quad_ma", NewQuadMAFromParams)
	r.Register("ma_crossover", NewMACrossoverFromParams)
	return r
}

// Register adds or replaces a named strategy factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Build constructs a strategy instance by name.
func (r *Registry) Build(name, symbol string, params map[string]any) (Strategy, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return factory(symbol, params)
}

// paramInt reads an integer strategy parameter, falling back to a default
// when absent (opaque JSON params decode numbers as float64).
func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func paramBool(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
