// Package engine implements the single-threaded trading engine cycle
// (SPEC_FULL §4.7): one call to ProcessNextEvent pulls one market event
// through strategy, risk, execution, and position tracking, producing the
// bundle of events observed during that cycle. Generalized from the
// teacher's internal/backtester/engine.go batch-only Run loop into a
// call-once-per-cycle method usable by both a finite backtest driver and a
// live bot actor (see DESIGN.md).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/quadra-systems/hlquad/internal/dataprovider"
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/execution"
	"github.com/quadra-systems/hlquad/internal/position"
	"github.com/quadra-systems/hlquad/internal/risk"
	"github.com/quadra-systems/hlquad/internal/strategy"
	"github.com/shopspring/decimal"
)

// EquityPoint is one sample of the engine's equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
}

// CycleEvents bundles everything produced during one ProcessNextEvent call,
// for an actor to broadcast to observers.
type CycleEvents struct {
	MarketEvent    eventbus.MarketEvent
	Signals        []eventbus.SignalEvent
	Orders         []eventbus.OrderEvent
	Fills          []eventbus.FillEvent
	RealizedPnLs   []decimal.Decimal
	PositionUpdate []position.Position
}

// Engine drives one bot's market-data -> signal -> order -> fill pipeline.
// Holds everything named in SPEC_FULL §4.7. The strategies slice is guarded
// by a mutex only to leave room for future multi-strategy composition; a
// single goroutine ever calls ProcessNextEvent.
type Engine struct {
	dataProvider     dataprovider.DataProvider
	executionHandler execution.ExecutionHandler
	riskManager      *risk.Manager
	tracker          *position.Tracker

	strategiesMu sync.Mutex
	strategies   []strategy.Strategy

	initialCapital decimal.Decimal
	equityCurve    []EquityPoint
	returns        []decimal.Decimal

	wins, losses int
	equityPeak   decimal.Decimal

	startTime, endTime        time.Time
	firstPrice, lastPrice     decimal.Decimal
	totalBars, barsInPosition int64
}

// New constructs an Engine for one bot. strategies typically has one
// element; the slice exists to keep the door open for future composition.
func New(
	dp dataprovider.DataProvider,
	eh execution.ExecutionHandler,
	rm *risk.Manager,
	tracker *position.Tracker,
	strategies []strategy.Strategy,
	initialCapital decimal.Decimal,
) *Engine {
	return &Engine{
		dataProvider:     dp,
		executionHandler: eh,
		riskManager:      rm,
		tracker:          tracker,
		strategies:       strategies,
		initialCapital:   initialCapital,
		equityCurve:      []EquityPoint{{Equity: initialCapital}},
		equityPeak:       initialCapital,
	}
}

// ProcessNextEvent implements SPEC_FULL §4.7's one-iteration cycle. Returns
// (nil, dataprovider.ErrExhausted) when the data provider is finished.
func (e *Engine) ProcessNextEvent(ctx context.Context) (*CycleEvents, error) {
	ev, err := e.dataProvider.NextEvent(ctx)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, dataprovider.ErrExhausted
	}

	if e.startTime.IsZero() {
		e.startTime = ev.Timestamp
		e.firstPrice = barPrice(*ev)
	}
	e.endTime = ev.Timestamp
	e.lastPrice = barPrice(*ev)

	e.totalBars++
	if len(e.tracker.All()) > 0 {
		e.barsInPosition++
	}

	if last := e.equityCurve[len(e.equityCurve)-1]; last.Equity.GreaterThan(e.equityPeak) {
		e.equityPeak = last.Equity
	}

	cycle := &CycleEvents{MarketEvent: *ev}

	e.strategiesMu.Lock()
	strategies := e.strategies
	e.strategiesMu.Unlock()

	for _, s := range strategies {
		signal, err := s.OnMarketEvent(*ev)
		if err != nil {
			return nil, err
		}
		if signal == nil {
			continue
		}
		cycle.Signals = append(cycle.Signals, *signal)

		currentEquity := e.equityCurve[len(e.equityCurve)-1].Equity
		orders, err := e.riskManager.EvaluateSignal(*signal, currentEquity)
		if err != nil {
			return nil, err
		}

		for _, order := range orders {
			cycle.Orders = append(cycle.Orders, order)

			fill, err := e.executionHandler.ExecuteOrder(ctx, order)
			if err != nil {
				return nil, err
			}
			cycle.Fills = append(cycle.Fills, fill)

			pnl := e.tracker.ProcessFill(fill)
			equity := e.equityCurve[len(e.equityCurve)-1].Equity
			if pnl != nil {
				cycle.RealizedPnLs = append(cycle.RealizedPnLs, *pnl)
				e.returns = append(e.returns, *pnl)
				equity = equity.Add(*pnl)
				if pnl.GreaterThan(decimal.Zero) {
					e.wins++
				} else if pnl.LessThan(decimal.Zero) {
					e.losses++
				}
			}
			equity = equity.Sub(fill.Commission)
			e.equityCurve = append(e.equityCurve, EquityPoint{Timestamp: fill.Timestamp, Equity: equity})
		}
	}

	cycle.PositionUpdate = e.tracker.All()
	return cycle, nil
}

func barPrice(ev eventbus.MarketEvent) decimal.Decimal {
	if ev.Kind == eventbus.MarketEventBar {
		return ev.Close
	}
	return ev.Price
}

// EquityCurve returns a snapshot of the equity curve accumulated so far.
func (e *Engine) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(e.equityCurve))
	copy(out, e.equityCurve)
	return out
}

// Returns reports the realized-PnL return series.
func (e *Engine) Returns() []decimal.Decimal {
	out := make([]decimal.Decimal, len(e.returns))
	copy(out, e.returns)
	return out
}

// Snapshot reports the run-level bookkeeping needed to compute metrics.
type Snapshot struct {
	InitialCapital decimal.Decimal
	FinalEquity    decimal.Decimal
	EquityPeak     decimal.Decimal
	FirstPrice     decimal.Decimal
	LastPrice      decimal.Decimal
	StartTime      time.Time
	EndTime        time.Time
	TotalBars      int64
	BarsInPosition int64
	Wins, Losses   int
}

// Snapshot returns the current run-level bookkeeping.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		InitialCapital: e.initialCapital,
		FinalEquity:    e.equityCurve[len(e.equityCurve)-1].Equity,
		EquityPeak:     e.equityPeak,
		FirstPrice:     e.firstPrice,
		LastPrice:      e.lastPrice,
		StartTime:      e.startTime,
		EndTime:        e.endTime,
		TotalBars:      e.totalBars,
		BarsInPosition: e.barsInPosition,
		Wins:           e.wins,
		Losses:         e.losses,
	}
}
