package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade_core/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Pprof Server (for performance profiling)
	if cfg.Server.PprofAddr != "" {
		go func() {
			// Localhost only for security
			slog.Info("🕵️ Pprof server started", slog.String("addr", cfg.Server.PprofAddr))
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 4. Rebuild books before accepting commands
	if err := bootstrap.Recover(); err != nil {
		slog.Error("❌ Recovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 5. Periodic snapshots
	if cfg.Snapshot.Enabled {
		bootstrap.Snapshots.StartScheduler(ctx, cfg.SnapshotInterval())
	}

	// 6. Stream server: live order/trade updates over websocket
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bootstrap.Hub.ServeWS)
	streamSrv := &http.Server{Addr: cfg.Server.StreamAddr, Handler: mux}
	go func() {
		slog.Info("✅ Stream server started", slog.String("addr", cfg.Server.StreamAddr))
		if err := streamSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Stream server failed", slog.Any("error", err))
		}
	}()

	slog.InfoContext(ctx, "✨ TradeCore fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	streamSrv.Shutdown(shutdownCtx)
}
