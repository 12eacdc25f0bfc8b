// Package scheduler drives the agent's sync cadence: catch-up at startup,
// clock-aligned runs, failure backoff and cooperative shutdown.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/t766/control/internal/clock"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/logging"
)

// State is the scheduler's current phase
type State int

const (
	StateIdle State = iota
	StateCatchUpCheck
	StateRunning
	StateWaiting
	StateBackoff
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCatchUpCheck:
		return "catch_up_check"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateBackoff:
		return "backoff"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// maxBackoffExponent caps the doubling in Backoff
const maxBackoffExponent = 5

// SyncFunc performs one sync attempt
type SyncFunc func(ctx context.Context) error

// LastRunStore persists the time of the last completed attempt
type LastRunStore interface {
	Load(now time.Time) (time.Time, bool)
	Save(t time.Time) error
}

// Config holds the cadence and failure policy
type Config struct {
	Interval               time.Duration
	CatchUpWindow          time.Duration
	MaxConsecutiveFailures int
	MinBackoff             time.Duration
	MaxBackoff             time.Duration
	PollInterval           time.Duration
}

// ConfigFrom converts the agent's schedule section
func ConfigFrom(c config.ScheduleConfig) Config {
	return Config{
		Interval:               c.Interval,
		CatchUpWindow:          c.CatchUpWindow,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		MinBackoff:             c.MinBackoff,
		MaxBackoff:             c.MaxBackoff,
		PollInterval:           c.PollInterval,
	}
}

// Validate checks that the cadence divides a day in whole minutes
func (c Config) Validate() error {
	if c.Interval < time.Minute || c.Interval%time.Minute != 0 {
		return fmt.Errorf("interval must be a whole number of minutes, got %s", c.Interval)
	}
	if (24*time.Hour)%c.Interval != 0 {
		return fmt.Errorf("interval %s does not divide 24h", c.Interval)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max consecutive failures must be at least 1")
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		return fmt.Errorf("invalid backoff range %s..%s", c.MinBackoff, c.MaxBackoff)
	}
	return nil
}

// Scheduler runs a SyncFunc on the configured cadence. At most one attempt
// is in flight at any time.
type Scheduler struct {
	cfg    Config
	clock  clock.Clock
	state  LastRunStore
	sync   SyncFunc
	logger *logging.Logger

	mu       sync.Mutex
	current  State
	failures int
}

// New creates a scheduler. clk defaults to the real clock.
func New(cfg Config, clk clock.Clock, store LastRunStore, fn SyncFunc, logger *logging.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		cfg:    cfg,
		clock:  clk,
		state:  store,
		sync:   fn,
		logger: logger,
	}, nil
}

// State returns the current phase
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Failures returns the consecutive failure count
func (s *Scheduler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	prev := s.current
	s.current = st
	s.mu.Unlock()
	if prev != st {
		s.logger.Debug("Scheduler state changed", "from", prev.String(), "to", st.String())
	}
}

// LastScheduledRun returns the most recent cadence boundary at or before
// now, on now's local wall clock.
func (s *Scheduler) LastScheduledRun(now time.Time) time.Time {
	year, month, day := now.Date()
	slot := s.slotMinute(now)
	return time.Date(year, month, day, 0, slot, 0, 0, now.Location())
}

// NextScheduledRun returns the first cadence boundary strictly after now.
func (s *Scheduler) NextScheduledRun(now time.Time) time.Time {
	year, month, day := now.Date()
	slot := s.slotMinute(now) + int(s.cfg.Interval/time.Minute)
	return time.Date(year, month, day, 0, slot, 0, 0, now.Location())
}

func (s *Scheduler) slotMinute(now time.Time) int {
	minutes := now.Hour()*60 + now.Minute()
	step := int(s.cfg.Interval / time.Minute)
	return minutes - minutes%step
}

// ShouldCatchUp reports whether a missed run should happen immediately:
// no valid last run at or after the last boundary, and that boundary is no
// more than the catch-up window (in whole minutes) in the past.
func (s *Scheduler) ShouldCatchUp(now, lastRun time.Time, ok bool) bool {
	if ok && lastRun.After(now) {
		s.logger.Warn("Last run is ahead of the clock, skipping catch-up",
			"last_run", lastRun.Format(time.RFC3339),
			"now", now.Format(time.RFC3339))
		return false
	}

	boundary := s.LastScheduledRun(now)
	if ok && !lastRun.Before(boundary) {
		return false
	}

	elapsed := now.Sub(boundary).Truncate(time.Minute)
	return elapsed <= s.cfg.CatchUpWindow
}

// Backoff returns the extra delay after overThreshold failures beyond the
// consecutive failure limit.
func (s *Scheduler) Backoff(overThreshold int) time.Duration {
	if overThreshold < 0 {
		overThreshold = 0
	}
	delay := s.cfg.MinBackoff << min(overThreshold, maxBackoffExponent)
	return min(delay, s.cfg.MaxBackoff)
}

// Run executes the schedule until ctx is cancelled. A run already in
// progress is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateShuttingDown)

	s.setState(StateCatchUpCheck)
	now := s.clock.Now()
	lastRun, ok := s.state.Load(now)
	if s.ShouldCatchUp(now, lastRun, ok) {
		s.logger.Info("Missed scheduled run, catching up",
			"scheduled", s.LastScheduledRun(now).Format(time.RFC3339))
		s.runOnce(ctx)
	}

	for ctx.Err() == nil {
		if !s.backoffIfNeeded(ctx) {
			break
		}

		s.setState(StateWaiting)
		next := s.NextScheduledRun(s.clock.Now())
		s.logger.Info("Waiting for next scheduled run", "next_run", next.Format(time.RFC3339))
		if !s.waitUntil(ctx, next) {
			break
		}

		s.runOnce(ctx)
	}

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) backoffIfNeeded(ctx context.Context) bool {
	failures := s.Failures()
	if failures < s.cfg.MaxConsecutiveFailures {
		return true
	}

	s.setState(StateBackoff)
	delay := s.Backoff(failures - s.cfg.MaxConsecutiveFailures)
	s.logger.Warn("Too many consecutive failures, backing off",
		"failures", failures,
		"delay", delay)
	return s.waitUntil(ctx, s.clock.Now().Add(delay))
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	// Cancellation stops the loop between runs, never inside one.
	s.setState(StateRunning)
	err := s.sync(context.WithoutCancel(ctx))

	s.mu.Lock()
	if err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
	failures := s.failures
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Sync attempt failed", "error", err, "consecutive_failures", failures)
	} else {
		s.logger.Info("Sync attempt completed")
	}

	if err := s.state.Save(s.clock.Now()); err != nil {
		s.logger.Error("Failed to persist last run", "error", err)
	}
}

// waitUntil sleeps in poll-sized slices, re-reading the clock each slice.
// It returns false if ctx was cancelled first.
func (s *Scheduler) waitUntil(ctx context.Context, deadline time.Time) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(min(remaining, s.cfg.PollInterval)):
		}
	}
}
