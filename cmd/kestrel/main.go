// Kestrel - BSA/AML red-flag screening with SAR narrative generation.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/refdata"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/sar"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.FromEnv()

	slog.Info("configuration loaded",
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"countries_file", cfg.RefData.CountriesPath,
		"keywords_file", cfg.RefData.KeywordsPath,
		"narrator_configured", cfg.Narrator.BaseURL != "",
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load reference data (missing files degrade to empty lists)
	refs := refdata.NewProvider(cfg.RefData)

	// Initialize rule registry and evaluator
	registry := rules.NewRegistry()
	evaluator := rules.NewEvaluator(registry, refs)
	slog.Info("rule registry initialized", "rules_count", registry.Count())

	// Initialize dataset store
	store := dataset.NewStore(cfg.Datasets.MaxDatasets)

	// Initialize SAR narrator
	narrator := sar.NewNarrator(cfg.Narrator, cacheImpl)
	if !narrator.Configured() {
		slog.Warn("sar narrator not configured - set KESTREL_SAR_BASE_URL to enable narrative generation")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, store, registry, evaluator, refs, cacheImpl, busImpl, narrator, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║      BSA/AML Red-Flag Screening           ║")
	fmt.Println("  ║      Every red flag, on the record.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /datasets                            - Upload a transaction CSV")
	fmt.Println("    GET    /datasets/{id}                       - Dataset summary")
	fmt.Println("    DELETE /datasets/{id}                       - Drop a dataset")
	fmt.Println("    GET    /datasets/{id}/customers/{customer}  - Customer summary")
	fmt.Println("    POST   /datasets/{id}/screen                - Run red-flag screening")
	fmt.Println("    POST   /datasets/{id}/customers/{c}/sar     - Generate SAR narrative")
	fmt.Println("    GET    /rules                               - List registered rules")
	fmt.Println("    POST   /rules                               - Register a CEL expression rule")
	fmt.Println("    GET    /refdata                             - Reference data snapshot info")
	fmt.Println("    POST   /refdata/reload                      - Reload reference lists")
	fmt.Println("    GET    /health                              - Health check")
	fmt.Println()
}
