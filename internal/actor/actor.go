// Package actor implements the bot actor (SPEC_FULL §4.8): the
// command/event/status surfaces wrapped around one Engine, and the
// InitializeSystem wiring procedure that constructs an Engine's dependencies
// from a BotConfig. Grounded on the teacher's internal/backtester/engine.go
// Run-loop shape and internal/api/websocket.go's Hub for the broadcast
// surface; the command/status/state-machine trio has no direct teacher
// analogue and is built in the teacher's idiom (see DESIGN.md).
package actor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quadra-systems/hlquad/internal/dataprovider"
	"github.com/quadra-systems/hlquad/internal/engine"
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/quadra-systems/hlquad/internal/execution"
	"github.com/quadra-systems/hlquad/internal/metrics"
	"github.com/quadra-systems/hlquad/internal/position"
	"github.com/quadra-systems/hlquad/internal/risk"
	"github.com/quadra-systems/hlquad/internal/signer"
	"github.com/quadra-systems/hlquad/internal/strategy"
	"github.com/quadra-systems/hlquad/pkg/types"
	"go.uber.org/zap"
)

// recentEventsCap is the length of the bounded recent-events ring each
// actor keeps for its status snapshot (SPEC_FULL §4.8).
const recentEventsCap = 10

// walletAddressEnv and walletKeyEnv are the only two places a private key
// and its owning address ever enter the process. They are read directly
// with os.LookupEnv and never routed through the config loader.
const (
	walletAddressEnv = "HYPERLIQUID_ACCOUNT_ADDRESS"
	walletKeyEnv     = "HYPERLIQUID_API_WALLET_KEY"
)

// BotActor owns one Engine and exposes the three I/O surfaces SPEC_FULL
// §4.8 names: a command channel, a broadcast of BotEvents, and a
// single-slot status watch.
type BotActor struct {
	logger *zap.Logger
	config types.BotConfig

	commands chan Command
	bcast    *broadcaster
	status   atomic.Value // types.EnhancedBotStatus

	stateMu sync.Mutex
	state   types.BotState

	recentMu sync.Mutex
	recent   []eventbus.BotEvent

	eng     *engine.Engine
	tracker *position.Tracker
}

// New constructs a BotActor in the Stopped state. Call InitializeSystem
// before Run.
func New(logger *zap.Logger, config types.BotConfig) *BotActor {
	a := &BotActor{
		logger:   logger,
		config:   config,
		commands: make(chan Command, commandBuffer),
		bcast:    newBroadcaster(),
		state:    types.BotStateStopped,
	}
	a.status.Store(types.EnhancedBotStatus{
		BotID:          config.BotID,
		State:          types.BotStateStopped,
		LastHeartbeat:  time.Now().UTC(),
		InitialCapital: config.InitialCapital,
		CurrentEquity:  config.InitialCapital,
	})
	return a
}

// Commands returns the channel callers send Command values to.
func (a *BotActor) Commands() chan<- Command { return a.commands }

// Subscribe registers a new observer of this actor's broadcast events.
func (a *BotActor) Subscribe() chan eventbus.BotEvent { return a.bcast.Subscribe() }

// Unsubscribe removes a previously registered observer.
func (a *BotActor) Unsubscribe(ch chan eventbus.BotEvent) { a.bcast.Unsubscribe(ch) }

// Status returns the most recently published status snapshot.
func (a *BotActor) Status() types.EnhancedBotStatus {
	return a.status.Load().(types.EnhancedBotStatus)
}

// InitializeSystem implements SPEC_FULL §4.8's six-step wiring procedure,
// building the Engine this actor drives from its BotConfig.
func (a *BotActor) InitializeSystem(ctx context.Context) error {
	cfg := a.config

	// 1. Wallet credentials are required only for Live; a Paper bot that
	// happens to have them set is unaffected, but we warn since it's an
	// easy misconfiguration to mean Live.
	address, hasAddress := os.LookupEnv(walletAddressEnv)
	privateKey, hasKey := os.LookupEnv(walletKeyEnv)
	switch cfg.ExecutionMode {
	case types.ExecutionModeLive:
		if !hasAddress || address == "" || !hasKey || privateKey == "" {
			return fmt.Errorf("bot %s: execution_mode=live requires %s and %s to be set",
				cfg.BotID, walletAddressEnv, walletKeyEnv)
		}
	default:
		if hasKey && privateKey != "" {
			a.logger.Warn("wallet credentials present but execution_mode is not live; ignoring",
				zap.String("bot_id", cfg.BotID), zap.String("execution_mode", string(cfg.ExecutionMode)))
		}
	}

	tracker := position.NewTracker()
	a.tracker = tracker

	var (
		dp           dataprovider.DataProvider
		eh           execution.ExecutionHandler
		warmupEvents []eventbus.MarketEvent
	)

	switch cfg.ExecutionMode {
	case types.ExecutionModeBacktest:
		historical, err := dataprovider.NewHistoricalCsv(cfg.HistoricalDataPath, cfg.Symbol)
		if err != nil {
			return fmt.Errorf("bot %s: historical data provider: %w", cfg.BotID, err)
		}
		dp = historical
		eh = execution.NewSimulatedWrapper(execution.NewSimulated(cfg.PaperCommissionRate, cfg.PaperSlippageBps))

	case types.ExecutionModePaper:
		live, warmup, err := a.buildLiveProvider(ctx, cfg)
		if err != nil {
			return err
		}
		dp = live
		warmupEvents = warmup
		eh = execution.NewSimulatedWrapper(execution.NewSimulated(cfg.PaperCommissionRate, cfg.PaperSlippageBps))

	case types.ExecutionModeLive:
		live, warmup, err := a.buildLiveProvider(ctx, cfg)
		if err != nil {
			return err
		}
		dp = live
		warmupEvents = warmup

		client, err := signer.NewClient(cfg.APIURL, privateKey)
		if err != nil {
			return fmt.Errorf("bot %s: signer client: %w", cfg.BotID, err)
		}
		if err := client.ResolveAssetIndices(ctx); err != nil {
			return fmt.Errorf("bot %s: resolve asset indices: %w", cfg.BotID, err)
		}
		eh = execution.NewLiveSignedWrapper(execution.NewLiveSigned(client, true))

	default:
		return fmt.Errorf("bot %s: unknown execution_mode %q", cfg.BotID, cfg.ExecutionMode)
	}

	// 4. Strategy construction via the registry, then replay any warmup
	// history so indicator windows are primed before the first live bar.
	strat, err := strategy.NewRegistry().Build(cfg.StrategyName, cfg.Symbol, cfg.StrategyParams)
	if err != nil {
		return fmt.Errorf("bot %s: build strategy: %w", cfg.BotID, err)
	}
	for _, ev := range warmupEvents {
		if _, err := strat.OnMarketEvent(ev); err != nil {
			a.logger.Warn("warmup replay rejected by strategy",
				zap.String("bot_id", cfg.BotID), zap.Error(err))
		}
	}

	// 5. Risk manager.
	riskManager := risk.NewManager(a.logger, risk.Config{
		RiskPerTradePct: cfg.RiskPerTradePct,
		MaxPositionPct:  cfg.MaxPositionPct,
		Leverage:        cfg.Leverage,
	}, tracker)

	// 6. Engine.
	a.eng = engine.New(dp, eh, riskManager, tracker, []strategy.Strategy{strat}, cfg.InitialCapital)
	return nil
}

func (a *BotActor) buildLiveProvider(ctx context.Context, cfg types.BotConfig) (*dataprovider.LiveWebSocket, []eventbus.MarketEvent, error) {
	live, err := dataprovider.NewLiveWebSocket(ctx, a.logger, cfg.WSURL, cfg.APIURL, cfg.Symbol, cfg.Interval)
	if err != nil {
		return nil, nil, fmt.Errorf("bot %s: live data provider: %w", cfg.BotID, err)
	}
	if cfg.WarmupPeriods == 0 {
		return live, nil, nil
	}
	warmup, err := dataprovider.Warmup(ctx, http.DefaultClient, cfg.APIURL, cfg.Symbol, cfg.Interval, cfg.WarmupPeriods)
	if err != nil {
		a.logger.Warn("warmup fetch failed, continuing without history",
			zap.String("bot_id", cfg.BotID), zap.Error(err))
		return live, nil, nil
	}
	return live, warmup, nil
}

// Run is the actor's main loop: a select over command arrival and the
// engine's own blocking read, exactly as SPEC_FULL §4.8 describes it. It
// returns when a Shutdown command is processed, when ctx is canceled, or
// when a cycle fails with an error other than data exhaustion (after
// recording an Error event and entering the Error state).
func (a *BotActor) Run(ctx context.Context) {
	defer a.bcast.CloseAll()

	a.setState(types.BotStateStopped)

	for {
		if a.getState() != types.BotStateRunning {
			select {
			case <-ctx.Done():
				return
			case cmd := <-a.commands:
				if done := a.handleCommand(cmd); done {
					return
				}
			}
			continue
		}

		cycleCh := make(chan cycleResult, 1)
		go func() {
			events, err := a.eng.ProcessNextEvent(ctx)
			cycleCh <- cycleResult{events: events, err: err}
		}()

		select {
		case <-ctx.Done():
			return
		case cmd := <-a.commands:
			if done := a.handleCommand(cmd); done {
				return
			}
		case result := <-cycleCh:
			if result.err != nil {
				if errors.Is(result.err, dataprovider.ErrExhausted) {
					a.setState(types.BotStateStopped)
					a.publishStatus()
					continue
				}
				a.recordEvent(eventbus.BotEvent{
					Kind: eventbus.BotEventError, Timestamp: time.Now().UTC(),
					Message: result.err.Error(),
				})
				a.setState(types.BotStateError)
				a.publishStatus()
				return
			}
			a.onCycle(result.events)
		}
	}
}

type cycleResult struct {
	events *engine.CycleEvents
	err    error
}

func (a *BotActor) handleCommand(cmd Command) (shutdown bool) {
	switch cmd.Kind {
	case CommandStart:
		if a.getState() == types.BotStateStopped || a.getState() == types.BotStatePaused {
			a.setState(types.BotStateRunning)
		}
	case CommandStop:
		a.setState(types.BotStateStopped)
	case CommandPause:
		if a.getState() == types.BotStateRunning {
			a.setState(types.BotStatePaused)
		}
	case CommandUpdateConfig:
		a.config = cmd.NewConfig
	case CommandShutdown:
		a.setState(types.BotStateStopped)
		return true
	case CommandGetStatus:
		if cmd.ReplyState != nil {
			cmd.ReplyState <- a.Status()
		}
	}
	a.publishStatus()
	return false
}

func (a *BotActor) onCycle(cycle *engine.CycleEvents) {
	if cycle == nil {
		return
	}
	ts := cycle.MarketEvent.Timestamp

	a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventMarketUpdate, Timestamp: ts, Symbol: cycle.MarketEvent.Symbol, Market: &cycle.MarketEvent})
	for i := range cycle.Signals {
		a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventSignalGenerated, Timestamp: ts, Signal: &cycle.Signals[i]})
	}
	for i := range cycle.Orders {
		a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventOrderPlaced, Timestamp: ts, Order: &cycle.Orders[i]})
	}
	for i := range cycle.Fills {
		a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventOrderFilled, Timestamp: ts, Fill: &cycle.Fills[i]})
	}
	for _, pnl := range cycle.RealizedPnLs {
		a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventTradeClosed, Timestamp: ts, RealizedPnL: pnl})
	}
	for _, pos := range cycle.PositionUpdate {
		a.recordEvent(eventbus.BotEvent{Kind: eventbus.BotEventPositionUpdate, Timestamp: ts, Symbol: pos.Symbol, Quantity: pos.Quantity, AvgPrice: pos.AvgPrice})
	}

	a.publishStatus()
}

func (a *BotActor) setState(s types.BotState) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
}

func (a *BotActor) getState() types.BotState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

func (a *BotActor) recordEvent(ev eventbus.BotEvent) {
	a.bcast.Publish(ev)

	a.recentMu.Lock()
	a.recent = append(a.recent, ev)
	if len(a.recent) > recentEventsCap {
		a.recent = a.recent[len(a.recent)-recentEventsCap:]
	}
	a.recentMu.Unlock()
}

func (a *BotActor) publishStatus() {
	state := a.getState()

	a.recentMu.Lock()
	recent := make([]eventbus.BotEvent, len(a.recent))
	copy(recent, a.recent)
	a.recentMu.Unlock()

	status := types.EnhancedBotStatus{
		BotID:          a.config.BotID,
		State:          state,
		LastHeartbeat:  time.Now().UTC(),
		InitialCapital: a.config.InitialCapital,
		CurrentEquity:  a.config.InitialCapital,
		RecentEvents:   recent,
	}

	if a.eng != nil {
		snapshot := a.eng.Snapshot()
		report := metrics.Compute(snapshot, a.eng.EquityCurve(), a.eng.Returns())
		status.CurrentEquity = snapshot.FinalEquity
		status.TotalReturnPct = report.TotalReturn
		status.SharpeRatio = report.Sharpe
		status.MaxDrawdown = report.MaxDrawdown
		status.WinRate = report.WinRate
		status.NumTrades = report.NumTrades

		for _, p := range a.tracker.All() {
			status.OpenPositions = append(status.OpenPositions, types.PositionInfo{
				Symbol:   p.Symbol,
				Quantity: p.Quantity,
				AvgPrice: p.AvgPrice,
			})
		}
	}
	if state == types.BotStateError && len(recent) > 0 {
		status.Error = recent[len(recent)-1].Message
	}

	a.status.Store(status)
}
