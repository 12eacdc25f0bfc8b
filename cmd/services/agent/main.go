package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/t766/control/internal/agent"
	"github.com/t766/control/internal/agent/apply"
	"github.com/t766/control/internal/agent/checkin"
	"github.com/t766/control/internal/agent/client"
	"github.com/t766/control/internal/agent/scheduler"
	"github.com/t766/control/internal/agent/state"
	"github.com/t766/control/internal/clock"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/logging"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single sync and exit")
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
	logger.Info("Agent starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	agentCfg := cfg.Agent
	if err := agentCfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to create agent directories", "error", err)
	}

	lastRun, err := state.Open(agentCfg.StateFile, agentCfg.Schedule.StaleAfter, logger)
	if err != nil {
		logger.Fatal("Failed to open schedule state", "path", agentCfg.StateFile, "error", err)
	}

	collector := client.New(client.Config{
		PrimaryURL:  agentCfg.PrimaryURL,
		FallbackURL: agentCfg.FallbackURL,
		Timeout:     agentCfg.RequestTimeout,
		MaxLogBytes: agentCfg.MaxLogBytes,
	}, logger)

	node, err := agent.New(
		agentCfg.Hostname,
		collector,
		checkin.New(agentCfg.CheckinFile, agentCfg.CheckinOldFile),
		apply.NewPuppetApplier(agentCfg.ApplyCommand, logger),
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create agent", "error", err)
	}
	logger.Info("Agent configured",
		"hostname", node.Hostname(),
		"primary_url", agentCfg.PrimaryURL,
		"fallback_url", agentCfg.FallbackURL)

	// Cancel on interrupt; a sync in progress is allowed to finish
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("Shutdown requested", "signal", sig.String())
		cancel()
	}()

	if *once {
		err := node.Sync(ctx)
		if saveErr := lastRun.Save(time.Now()); saveErr != nil {
			logger.Error("Failed to persist last run", "error", saveErr)
		}
		if err != nil {
			logger.Error("Sync failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Sync completed")
		return
	}

	sched, err := scheduler.New(scheduler.ConfigFrom(agentCfg.Schedule), clock.Real(), lastRun, node.Sync, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", "error", err)
	}

	if err := sched.Run(ctx); err != nil {
		logger.Error("Scheduler stopped with error", "error", err)
	}
	logger.Info("Agent exited")
}
