// Kestrel - Credit decisioning that deploys in 60 seconds.
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
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/scoring"
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
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

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

	// Initialize Scoring Oracle
	weights, err := scoring.LoadWeights(cfg.Decision.WeightsPath)
	if err != nil {
		slog.Error("failed to load score weights", "error", err)
		os.Exit(1)
	}
	oracle, err := scoring.NewHeuristicOracle(weights)
	if err != nil {
		slog.Error("failed to initialize scoring oracle", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring oracle initialized", "weights", pathOrDefault(cfg.Decision.WeightsPath))

	// Initialize Policy Store
	set, err := policy.LoadPolicySet(cfg.Decision.PoliciesPath)
	if err != nil {
		slog.Error("failed to load policy set", "error", err)
		os.Exit(1)
	}
	store, err := policy.NewStore(set)
	if err != nil {
		slog.Error("failed to initialize policy store", "error", err)
		os.Exit(1)
	}
	slog.Info("policy store initialized",
		"policies", len(set.Policies),
		"source", pathOrDefault(cfg.Decision.PoliciesPath),
	)

	// Initialize Risk Analyzer
	lgdTable, err := risk.LoadLGDTable(cfg.Decision.LGDPath)
	if err != nil {
		slog.Error("failed to load lgd table", "error", err)
		os.Exit(1)
	}
	analyzer := risk.NewAnalyzer(lgdTable)
	slog.Info("risk analyzer initialized", "lgd", pathOrDefault(cfg.Decision.LGDPath))

	// Assemble the decision engine
	eng := engine.New(oracle, store, analyzer, engine.Options{
		Repository:       repo,
		Cache:            cacheImpl,
		EventBus:         busImpl,
		CacheTTL:         time.Duration(cfg.Decision.CacheTTL) * time.Second,
		PortfolioWorkers: cfg.Decision.PortfolioWorkers,
	})

	// Initialize Server
	srv := api.NewServer(cfg.Server, eng, repo, cacheImpl, busImpl, Version)

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

// applyEnvOverrides lets the decisioning inputs be pointed at files
// without a config document.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KESTREL_POLICIES"); v != "" {
		cfg.Decision.PoliciesPath = v
	}
	if v := os.Getenv("KESTREL_WEIGHTS"); v != "" {
		cfg.Decision.WeightsPath = v
	}
	if v := os.Getenv("KESTREL_LGD"); v != "" {
		cfg.Decision.LGDPath = v
	}
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KESTREL_WORKERS"); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			cfg.Decision.PortfolioWorkers = workers
		}
	}
}

func pathOrDefault(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═════════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                    ║")
	fmt.Println("  ║        Credit Decisioning Engine            ║")
	fmt.Println("  ║      Every applicant, one clear answer.     ║")
	fmt.Println("  ╚═════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate                   - Evaluate an applicant")
	fmt.Println("    POST /evaluate/{policy}          - Evaluate against one policy")
	fmt.Println("    POST /portfolio/evaluate         - Batch portfolio evaluation")
	fmt.Println("    GET  /decisions/{id}             - Get decision by ID")
	fmt.Println("    GET  /applicants/{id}/decisions  - Decision history per applicant")
	fmt.Println("    GET  /policies                   - List credit policies")
	fmt.Println("    PUT  /policies/{name}            - Update a policy")
	fmt.Println("    POST /policies/{name}/reset      - Restore a policy default")
	fmt.Println("    GET  /lgd                        - Loss-given-default table")
	fmt.Println("    PUT  /lgd/{product}              - Tune a product LGD ratio")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println()
}
