package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lightsats/internal/app"
	"lightsats/internal/infra"
	"lightsats/internal/server"
	"lightsats/internal/service"

	"github.com/joho/godotenv"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env files (ignore error if file not found)
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using system env vars")
	}

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Avatar Sync
	go bootstrap.SyncAvatars(ctx)

	// 5. Rate Table Polling
	rates := service.NewRateService()
	rateClient := infra.NewRateClient(rates.Replace, cfg.Rates.URL, cfg.Rates.PollIntervalSec)
	if err := rateClient.Start(ctx); err != nil {
		slog.Error("Failed to start rate client", slog.Any("error", err))
	}
	defer rateClient.Stop()
	slog.InfoContext(ctx, "Rate client started", slog.String("url", cfg.Rates.URL))

	// 6. Tip Service & Expiry Sweeper
	tips := service.NewTipService(bootstrap.Storage, rates, cfg)
	sweeper := service.NewExpirySweeper(bootstrap.Storage, cfg.Tips.SweepIntervalSec)
	sweeper.Start(ctx)
	slog.InfoContext(ctx, "Expiry sweeper started")

	// 7. HTTP API
	srv := server.New(cfg, bootstrap.Storage, tips, rates, bootstrap.Downloader)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "Lightsats fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "Shutting down gracefully...")
}
