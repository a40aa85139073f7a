// Package types holds the value types shared across the trading engine: bot
// configuration, runtime state, and the status snapshot broadcast to
// observers. Event and order types live in internal/eventbus; these are the
// cross-cutting types a bot registry and its observers need that are not
// themselves pipeline events.
package types

import (
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

// ExecutionMode selects which data provider and execution handler a bot uses.
type ExecutionMode string

const (
	ExecutionModeBacktest ExecutionMode = "backtest"
	ExecutionModePaper    ExecutionMode = "paper"
	ExecutionModeLive     ExecutionMode = "live"
)

// MarginMode is advisory metadata only; it is never serialized into an order
// action (the exchange API exposes no per-order margin-mode field).
type MarginMode string

const (
	MarginModeCross    MarginMode = "cross"
	MarginModeIsolated MarginMode = "isolated"
)

// BotState is the actor's coarse lifecycle state.
type BotState string

const (
	BotStateStopped BotState = "stopped"
	BotStateRunning BotState = "running"
	BotStatePaused  BotState = "paused"
	BotStateError   BotState = "error"
)

// BotConfig is the persisted, restart-durable configuration for one bot.
// Wallet credentials are deliberately absent: they are read from the process
// environment at actor start and never flow through this struct.
type BotConfig struct {
	BotID               string          `json:"botId"`
	Symbol              string          `json:"symbol"`
	StrategyName        string          `json:"strategyName"`
	Enabled             bool            `json:"enabled"`
	Interval            string          `json:"interval"`
	WSURL               string          `json:"wsUrl"`
	APIURL              string          `json:"apiUrl"`
	HistoricalDataPath  string          `json:"historicalDataPath"`
	WarmupPeriods       int             `json:"warmupPeriods"`
	StrategyParams      map[string]any  `json:"strategyParams"`
	InitialCapital      decimal.Decimal `json:"initialCapital"`
	RiskPerTradePct     decimal.Decimal `json:"riskPerTradePct"`
	MaxPositionPct      decimal.Decimal `json:"maxPositionPct"`
	Leverage            decimal.Decimal `json:"leverage"`
	MarginMode          MarginMode      `json:"marginMode"`
	ExecutionMode       ExecutionMode   `json:"executionMode"`
	PaperSlippageBps    decimal.Decimal `json:"paperSlippageBps"`
	PaperCommissionRate decimal.Decimal `json:"paperCommissionRate"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Validate checks the invariants named in BotConfig's field list (§3).
func (c BotConfig) Validate() error {
	switch {
	case c.BotID == "":
		return errConfig("bot_id is required")
	case c.Symbol == "":
		return errConfig("symbol is required")
	case c.StrategyName == "":
		return errConfig("strategy_name is required")
	case c.RiskPerTradePct.LessThanOrEqual(decimal.Zero) || c.RiskPerTradePct.GreaterThan(decimal.NewFromInt(1)):
		return errConfig("risk_per_trade_pct must be in (0,1]")
	case c.MaxPositionPct.LessThanOrEqual(decimal.Zero) || c.MaxPositionPct.GreaterThan(decimal.NewFromInt(1)):
		return errConfig("max_position_pct must be in (0,1]")
	case c.Leverage.LessThan(decimal.NewFromInt(1)) || c.Leverage.GreaterThan(decimal.NewFromInt(50)):
		return errConfig("leverage must be in [1,50]")
	case c.ExecutionMode != ExecutionModeBacktest && c.ExecutionMode != ExecutionModePaper && c.ExecutionMode != ExecutionModeLive:
		return errConfig("execution_mode must be one of backtest, paper, live")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "invalid bot config: " + string(e) }

func errConfig(msg string) error { return configError(msg) }

// PositionInfo is the read-only position snapshot carried in EnhancedBotStatus.
type PositionInfo struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
}

// EnhancedBotStatus is the single-slot snapshot the bot actor publishes to its
// status watch on every cycle.
type EnhancedBotStatus struct {
	BotID          string              `json:"botId"`
	State          BotState            `json:"state"`
	LastHeartbeat  time.Time           `json:"lastHeartbeat"`
	CurrentEquity  decimal.Decimal     `json:"currentEquity"`
	InitialCapital decimal.Decimal     `json:"initialCapital"`
	TotalReturnPct decimal.Decimal     `json:"totalReturnPct"`
	SharpeRatio    decimal.Decimal     `json:"sharpeRatio"`
	MaxDrawdown    decimal.Decimal     `json:"maxDrawdown"`
	WinRate        decimal.Decimal     `json:"winRate"`
	NumTrades      int                 `json:"numTrades"`
	OpenPositions  []PositionInfo      `json:"openPositions"`
	RecentEvents   []eventbus.BotEvent `json:"recentEvents"`
	Error          string              `json:"error,omitempty"`
}
