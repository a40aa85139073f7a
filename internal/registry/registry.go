// Package registry implements fleet management for bot actors (SPEC_FULL
// §4.11): an in-memory map of running bot handles guarded by a RWMutex, with
// optional sqlite-backed config/state persistence so a fleet can be
// restored after a process restart. Grounded on the teacher's
// orchestrator.TradingOrchestrator map-of-handles shape
// (internal/orchestrator/orchestrator.go), narrowed from its PhD-level
// component wiring down to what SPEC_FULL actually names.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quadra-systems/hlquad/internal/actor"
	"github.com/quadra-systems/hlquad/pkg/types"
	"go.uber.org/zap"
)

// Fleet-level counters, registered in init() the way the teacher's own
// metrics.go registers its bot_orders_total/bot_trades_total family.
var (
	botsSpawnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlquad_registry_bots_spawned_total",
		Help: "Total bot actors successfully spawned by the registry.",
	})
	botsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlquad_registry_bots_removed_total",
		Help: "Total bot actors removed from the registry.",
	})
	botsRunningGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hlquad_registry_bots_running",
		Help: "Number of bot actors currently running in the registry.",
	})
)

func init() {
	prometheus.MustRegister(botsSpawnedTotal, botsRemovedTotal, botsRunningGauge)
}

// handle is one running bot: its actor and the cancel function that stops
// its Run goroutine.
type handle struct {
	bot    *actor.BotActor
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the fleet of running bots. Store is optional: a nil store
// disables persistence and Registry behaves as a pure in-memory fleet
// manager.
type Registry struct {
	logger *zap.Logger
	store  *Store

	mu   sync.RWMutex
	bots map[string]*handle
}

// New constructs a Registry. Pass a nil store to run without persistence.
func New(logger *zap.Logger, store *Store) *Registry {
	return &Registry{logger: logger, store: store, bots: make(map[string]*handle)}
}

// Spawn constructs and starts a bot actor for cfg, persisting its config if
// a store is attached. Returns an error if a bot with this BotID is already
// running.
func (r *Registry) Spawn(ctx context.Context, cfg types.BotConfig) (*actor.BotActor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("registry.Spawn: %w", err)
	}

	r.mu.Lock()
	if _, exists := r.bots[cfg.BotID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry.Spawn: bot %s is already running", cfg.BotID)
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertConfig(ctx, cfg); err != nil {
			r.logger.Warn("failed to persist bot config", zap.String("bot_id", cfg.BotID), zap.Error(err))
		}
	}

	bot := actor.New(r.logger, cfg)
	if err := bot.InitializeSystem(ctx); err != nil {
		return nil, fmt.Errorf("registry.Spawn: initialize bot %s: %w", cfg.BotID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		bot.Run(runCtx)
		close(done)
	}()

	r.mu.Lock()
	r.bots[cfg.BotID] = &handle{bot: bot, cancel: cancel, done: done}
	r.mu.Unlock()
	botsSpawnedTotal.Inc()
	botsRunningGauge.Inc()

	if r.store != nil {
		go r.persistRuntimeState(bot)
	}
	return bot, nil
}

// persistRuntimeState mirrors a bot's status broadcast into bot_runtime_state
// so the fleet's last-known state survives a process restart. It runs until
// the bot's broadcaster is closed at the end of Run.
func (r *Registry) persistRuntimeState(bot *actor.BotActor) {
	sub := bot.Subscribe()
	defer bot.Unsubscribe(sub)

	for range sub {
		if err := r.store.SaveRuntimeState(context.Background(), bot.Status()); err != nil {
			r.logger.Warn("failed to persist bot runtime state",
				zap.String("bot_id", bot.Status().BotID), zap.Error(err))
		}
	}
}

// Remove stops and forgets a running bot. It is a no-op if the bot is not
// found.
func (r *Registry) Remove(ctx context.Context, botID string) error {
	r.mu.Lock()
	h, ok := r.bots[botID]
	if ok {
		delete(r.bots, botID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	h.bot.Commands() <- actor.Command{Kind: actor.CommandShutdown}
	h.cancel()
	<-h.done
	botsRemovedTotal.Inc()
	botsRunningGauge.Dec()

	if r.store != nil {
		if err := r.store.RemoveConfig(ctx, botID); err != nil {
			return fmt.Errorf("registry.Remove: %w", err)
		}
	}
	return nil
}

// Get returns the actor for botID, if running.
func (r *Registry) Get(botID string) (*actor.BotActor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.bots[botID]
	if !ok {
		return nil, false
	}
	return h.bot, true
}

// List reports the status of every currently running bot.
func (r *Registry) List() []types.EnhancedBotStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.EnhancedBotStatus, 0, len(r.bots))
	for _, h := range r.bots {
		out = append(out, h.bot.Status())
	}
	return out
}

// RestoreFromDB spawns every enabled bot config persisted in the attached
// store; configs with Enabled false are skipped.
// A per-bot error is logged and skipped rather than aborting the whole
// restore.
func (r *Registry) RestoreFromDB(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	configs, err := r.store.LoadAllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("registry.RestoreFromDB: %w", err)
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, err := r.Spawn(ctx, cfg); err != nil {
			r.logger.Error("failed to restore bot", zap.String("bot_id", cfg.BotID), zap.Error(err))
		}
	}
	return nil
}

// SyncWithApproved reconciles the running fleet against approved, removing
// any running bot whose BotID is absent from approved and spawning any
// approved config that is not yet running.
func (r *Registry) SyncWithApproved(ctx context.Context, approved []types.BotConfig) error {
	want := make(map[string]types.BotConfig, len(approved))
	for _, cfg := range approved {
		want[cfg.BotID] = cfg
	}

	r.mu.RLock()
	running := make(map[string]struct{}, len(r.bots))
	for id := range r.bots {
		running[id] = struct{}{}
	}
	r.mu.RUnlock()

	for id := range running {
		if _, ok := want[id]; !ok {
			if err := r.Remove(ctx, id); err != nil {
				r.logger.Error("failed to remove unapproved bot", zap.String("bot_id", id), zap.Error(err))
			}
		}
	}
	for id, cfg := range want {
		if _, ok := running[id]; !ok && cfg.Enabled {
			if _, err := r.Spawn(ctx, cfg); err != nil {
				r.logger.Error("failed to spawn approved bot", zap.String("bot_id", id), zap.Error(err))
			}
		}
	}
	return nil
}

// ShutdownAll stops every running bot and waits for its goroutine to exit.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	handles := make([]*handle, 0, len(r.bots))
	for id, h := range r.bots {
		handles = append(handles, h)
		delete(r.bots, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *handle) {
			defer wg.Done()
			h.bot.Commands() <- actor.Command{Kind: actor.CommandShutdown}
			h.cancel()
			<-h.done
			botsRemovedTotal.Inc()
			botsRunningGauge.Dec()
		}(h)
	}
	wg.Wait()
}
