// Command hlquad runs a fleet of Hyperliquid trading bots: it loads bot
// configuration via viper, restores any previously persisted fleet from
// sqlite, and runs until SIGINT/SIGTERM triggers a graceful shutdown.
// Grounded on the teacher's cmd/server/main.go for the logger/signal/
// shutdown shape, narrowed from its HTTP/WebSocket server startup (an
// explicit Non-goal here) down to registry construction and lifecycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quadra-systems/hlquad/internal/registry"
	"github.com/quadra-systems/hlquad/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to the bot fleet config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	v := viper.New()
	v.SetConfigFile(*configPath)
	v.SetEnvPrefix("HLQUAD")
	v.AutomaticEnv()
	v.SetDefault("storage.sqlite_path", "data/bots.db")

	if err := v.ReadInConfig(); err != nil {
		logger.Fatal("failed to read config", zap.String("path", *configPath), zap.Error(err))
	}

	var fleet fleetConfig
	if err := v.Unmarshal(&fleet); err != nil {
		logger.Fatal("failed to parse config", zap.Error(err))
	}

	sqlitePath := v.GetString("storage.sqlite_path")
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		logger.Fatal("failed to create registry store directory", zap.String("path", sqlitePath), zap.Error(err))
	}
	store, err := registry.OpenStore(sqlitePath)
	if err != nil {
		logger.Fatal("failed to open registry store", zap.Error(err))
	}
	defer store.Close()

	reg := registry.New(logger, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.RestoreFromDB(ctx); err != nil {
		logger.Error("failed to restore fleet from previous run", zap.Error(err))
	}

	for _, cfg := range fleet.Bots {
		if _, err := reg.Spawn(ctx, cfg.toBotConfig()); err != nil {
			logger.Error("failed to spawn configured bot", zap.String("bot_id", cfg.BotID), zap.Error(err))
		}
	}

	logger.Info("hlquad fleet started", zap.Int("bots", len(fleet.Bots)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()

	shutdownDone := make(chan struct{})
	go func() {
		reg.ShutdownAll()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info("fleet shut down cleanly")
	case <-time.After(30 * time.Second):
		logger.Error("fleet shutdown timed out after 30s")
	}
}

// fleetConfig is the top-level shape of config.yaml.
type fleetConfig struct {
	Bots []botConfigFile `mapstructure:"bots"`
}

// botConfigFile is the YAML-friendly mirror of types.BotConfig: plain
// float64 fields decode cleanly through viper/mapstructure, then convert to
// decimal.Decimal for the rest of the system.
type botConfigFile struct {
	BotID               string         `mapstructure:"bot_id"`
	Symbol              string         `mapstructure:"symbol"`
	StrategyName        string         `mapstructure:"strategy_name"`
	Enabled             bool           `mapstructure:"enabled"`
	Interval            string         `mapstructure:"interval"`
	WSURL               string         `mapstructure:"ws_url"`
	APIURL              string         `mapstructure:"api_url"`
	HistoricalDataPath  string         `mapstructure:"historical_data_path"`
	WarmupPeriods       int            `mapstructure:"warmup_periods"`
	StrategyParams      map[string]any `mapstructure:"strategy_params"`
	InitialCapital      float64        `mapstructure:"initial_capital"`
	RiskPerTradePct     float64        `mapstructure:"risk_per_trade_pct"`
	MaxPositionPct      float64        `mapstructure:"max_position_pct"`
	Leverage            float64        `mapstructure:"leverage"`
	MarginMode          string         `mapstructure:"margin_mode"`
	ExecutionMode       string         `mapstructure:"execution_mode"`
	PaperSlippageBps    float64        `mapstructure:"paper_slippage_bps"`
	PaperCommissionRate float64        `mapstructure:"paper_commission_rate"`
}

func (c botConfigFile) toBotConfig() types.BotConfig {
	now := time.Now().UTC()
	return types.BotConfig{
		BotID:               c.BotID,
		Symbol:              c.Symbol,
		StrategyName:        c.StrategyName,
		Enabled:             c.Enabled,
		Interval:            c.Interval,
		WSURL:               c.WSURL,
		APIURL:              c.APIURL,
		HistoricalDataPath:  c.HistoricalDataPath,
		WarmupPeriods:       c.WarmupPeriods,
		StrategyParams:      c.StrategyParams,
		InitialCapital:      decimal.NewFromFloat(c.InitialCapital),
		RiskPerTradePct:     decimal.NewFromFloat(c.RiskPerTradePct),
		MaxPositionPct:      decimal.NewFromFloat(c.MaxPositionPct),
		Leverage:            decimal.NewFromFloat(c.Leverage),
		MarginMode:          types.MarginMode(c.MarginMode),
		ExecutionMode:       types.ExecutionMode(c.ExecutionMode),
		PaperSlippageBps:    decimal.NewFromFloat(c.PaperSlippageBps),
		PaperCommissionRate: decimal.NewFromFloat(c.PaperCommissionRate),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
