package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/subscriber"
)

var (
	cfgFile   string
	group     string
	fromStart bool
	statuses  []string
	asJSON    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncwatch",
		Short: "Tail sync reports as the collector stores them",
		Long:  `Subscribe to the collector's sync events on the configured broker (nats, redis or kafka) and print one line per stored report.`,
		RunE:  runWatch,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./settings.toml)")
	rootCmd.Flags().StringVar(&group, "group", subscriber.DefaultConfig().ConsumerGroup, "consumer group name")
	rootCmd.Flags().BoolVar(&fromStart, "from-start", false, "replay retained events before tailing")
	rootCmd.Flags().StringSliceVar(&statuses, "status", nil, "only show these statuses (success, failure, interrupted)")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON events")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	for _, s := range statuses {
		if !models.Status(s).Valid() {
			return fmt.Errorf("invalid status %q", s)
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	hostname, _ := os.Hostname()
	sub, err := subscriber.NewSubscriber(cfg.Events, subscriber.Config{
		ConsumerGroup: group,
		ConsumerID:    fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		FromStart:     fromStart,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := subscriber.SyncEventHandler(printer(cmd.OutOrStdout()))
	for _, subject := range subjects() {
		if err := sub.Subscribe(ctx, subject, handler); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

// subjects returns the event subjects selected by --status
func subjects() []string {
	if len(statuses) == 0 {
		return events.Subjects()
	}
	var out []string
	for _, s := range statuses {
		subject := events.Subject(models.Status(s))
		if !slices.Contains(out, subject) {
			out = append(out, subject)
		}
	}
	return out
}

func printer(w io.Writer) func(context.Context, events.SyncEvent) error {
	// Handlers run on one goroutine per subject
	var mu sync.Mutex
	return func(_ context.Context, event events.SyncEvent) error {
		mu.Lock()
		defer mu.Unlock()

		if asJSON {
			return json.NewEncoder(w).Encode(event)
		}
		_, err := fmt.Fprintf(w, "%s  %-12s %-24s exit=%d\n", event.Timestamp, event.Status, event.Hostname, event.ExitCode)
		return err
	}
}
