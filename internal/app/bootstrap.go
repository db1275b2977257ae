package app

import (
	"context"
	"log/slog"
	"time"

	"trade_core/internal/engine"
	"trade_core/internal/infra"
	"trade_core/internal/infra/storage"
	"trade_core/internal/infra/stream"
	"trade_core/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Cache     *infra.MemoryCache
	Hub       *stream.Hub
	Events    *service.EventService
	Engine    *engine.Router
	Replay    *service.ReplayService
	Snapshots *service.SnapshotService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires the core: config, logger, store, cache, stream hub,
// event log, router and the recovery services. ctx bounds the lifetime of
// every goroutine started here (sequencers, cache janitor).
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping TradeCore...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Database.Path))

	// 4. Idempotency cache + stream hub
	b.Cache = infra.NewMemoryCache(cfg.IdempotencyTTL())
	b.Cache.StartJanitor(ctx, time.Minute)
	b.Hub = stream.NewHub()

	// 5. Event log + matching engine
	b.Events = service.NewEventService(store)
	b.Engine = engine.NewRouter(ctx, store, b.Events, b.Cache, b.Hub, cfg.Engine.InboxSize)
	b.Replay = service.NewReplayService(store, b.Engine)
	b.Snapshots = service.NewSnapshotService(store, b.Engine, b.Replay)

	return nil
}

// Recover rebuilds in-memory books before live traffic: open orders are
// loaded from the store, then the latest snapshots (plus their event
// deltas) are restored when configured. Must complete before any command
// is accepted.
func (b *Bootstrap) Recover() error {
	if err := b.Engine.LoadOpenOrders(); err != nil {
		return err
	}
	if b.Config.Snapshot.RestoreOnStart {
		slog.Info("🔄 Restoring latest snapshots...")
		if err := b.Snapshots.RestoreAll(); err != nil {
			return err
		}
	}
	slog.Info("✅ Recovery complete")
	return nil
}
