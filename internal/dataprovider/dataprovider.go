// Package dataprovider implements the DataProvider contract (SPEC_FULL
// §4.5): a source of Bar market events, either replayed from a finite CSV
// file or streamed live from Hyperliquid's WebSocket feed.
package dataprovider

import (
	"context"
	"errors"

	"github.com/quadra-systems/hlquad/internal/eventbus"
)

// ErrExhausted is returned by NextEvent once a finite provider has no more
// events to yield.
var ErrExhausted = errors.New("dataprovider: exhausted")

// DataProvider yields market events one at a time. A finite provider (e.g.
// HistoricalCsv) returns ErrExhausted once done; a live provider blocks until
// ctx is cancelled or a new event arrives.
type DataProvider interface {
	NextEvent(ctx context.Context) (*eventbus.MarketEvent, error)
	Close() error
}
