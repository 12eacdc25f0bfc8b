// Package agent ties the node-side pieces together into a single sync
// attempt: fetch the bundle, apply it, report the outcome.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/t766/control/internal/agent/apply"
	"github.com/t766/control/internal/agent/client"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// Collector is the remote side of a sync
type Collector interface {
	FetchManifests(ctx context.Context) (*client.Bundle, error)
	SubmitStatus(ctx context.Context, req models.SubmitRequest) (string, error)
}

// CheckinSource supplies buffered check-in records
type CheckinSource interface {
	Read() ([]string, error)
	Clear() error
}

// Agent performs sync attempts for one node
type Agent struct {
	hostname  string
	collector Collector
	checkins  CheckinSource
	applier   apply.Applier
	logger    *logging.Logger
}

// New creates an Agent. An empty hostname falls back to os.Hostname.
func New(hostname string, collector Collector, checkins CheckinSource, applier apply.Applier, logger *logging.Logger) (*Agent, error) {
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine hostname: %w", err)
		}
		hostname = h
	}
	return &Agent{
		hostname:  hostname,
		collector: collector,
		checkins:  checkins,
		applier:   applier,
		logger:    logger.With("hostname", hostname),
	}, nil
}

// Hostname returns the name reported to the collector
func (a *Agent) Hostname() string {
	return a.hostname
}

// Sync runs one attempt. Transport, archive and submit failures are
// returned; a failed apply is reported upstream and is not an error.
func (a *Agent) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// A started run always reports, even when shutdown begins mid-apply.
	ctx = context.WithoutCancel(ctx)

	bundle, err := a.collector.FetchManifests(ctx)
	if err != nil {
		return fmt.Errorf("fetch manifests: %w", err)
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			a.logger.Warn("Failed to remove bundle directory", "dir", bundle.Dir, "error", err)
		}
	}()

	checkins := a.collectCheckins()

	result := a.applier.Apply(ctx, bundle.ManifestsDir, bundle.ModulesDir)
	status := result.Status()
	a.logger.Info("Apply finished", "status", string(status), "exit_code", result.ExitCode)

	ack, err := a.collector.SubmitStatus(ctx, models.SubmitRequest{
		Hostname:    a.hostname,
		Status:      status,
		ExitCode:    result.ExitCode,
		Logs:        result.Output,
		CheckinLogs: checkins,
	})
	if err != nil {
		return fmt.Errorf("submit status: %w", err)
	}

	a.logger.Info("Sync report accepted", "ack", strings.TrimSpace(ack))
	return nil
}

// collectCheckins reads and clears the buffer. Failures never fail the sync.
func (a *Agent) collectCheckins() []string {
	if a.checkins == nil {
		return []string{}
	}

	entries, err := a.checkins.Read()
	if err != nil {
		a.logger.Warn("Failed to read check-in buffer", "error", err)
		return []string{}
	}
	if len(entries) == 0 {
		return entries
	}

	if err := a.checkins.Clear(); err != nil {
		a.logger.Warn("Failed to clear check-in buffer", "error", err)
	}
	a.logger.Debug("Attaching check-ins", "count", len(entries))
	return entries
}
