package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/t766/control/internal/clock"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/handlers"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/router"
	"github.com/t766/control/internal/services"
	"github.com/t766/control/internal/storage"
	"github.com/t766/control/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Collector service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Open status store
	store, err := storage.Open(cfg.Storage.Path, storage.Options{
		MaxKeys:       cfg.Storage.MaxKeys,
		KeysToRemove:  cfg.Storage.KeysToRemove,
		MaxRecordSize: cfg.Storage.MaxRecordSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open status store", "path", cfg.Storage.Path, "error", err)
	}
	defer func() { _ = store.Close() }()
	logger.Info("Status store opened", "path", cfg.Storage.Path, "max_keys", cfg.Storage.MaxKeys)

	// Connect sync event publisher (configurable backend)
	logger.Info("Connecting event publisher", "type", cfg.Events.Type, "url", cfg.Events.URL)
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal("Failed to connect event publisher", "error", err)
	}
	emitter := events.NewEmitter(publisher, logger)
	defer func() { _ = emitter.Close() }()

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - read API is open")
	}

	loc := cfg.Storage.GetTimezone()
	bucketer := services.NewBucketer(loc, cfg.Storage.BucketMinutes)
	syncService := services.NewSyncService(logger, store, emitter, clock.Real(), loc)
	queryService := services.NewQueryService(logger, store, bucketer, cfg.Storage.MatrixDepth)

	h := handlers.New(logger, store, syncService, queryService, cfg.Manifests.Root)
	app := router.New(logger, h, *cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.Server.GetServerAddress()
		logger.Info("Server listening", "address", addr, "manifests", cfg.Manifests.Root, "timezone", loc.String())
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
