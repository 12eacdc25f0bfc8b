// Package state persists the agent's last completed run so a restart can
// decide whether a scheduled run was missed.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/t766/control/internal/logging"
)

// Store reads and writes the last_run file: decimal Unix seconds.
type Store struct {
	path       string
	staleAfter time.Duration
	logger     *logging.Logger
}

// Open prepares a Store at path, creating its parent directory. Records
// older than staleAfter are treated as absent.
func Open(path string, staleAfter time.Duration, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{path: path, staleAfter: staleAfter, logger: logger}, nil
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the recorded last run. ok is false when the file is
// missing, unparseable, in the future, or older than the staleness ceiling.
func (s *Store) Load(now time.Time) (last time.Time, ok bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read last run state", "path", s.path, "error", err)
		}
		return time.Time{}, false
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		s.logger.Warn("Ignoring unparseable last run state", "path", s.path, "error", err)
		return time.Time{}, false
	}

	last = time.Unix(secs, 0)
	if last.After(now) {
		s.logger.Warn("Ignoring last run recorded in the future",
			"last_run", last.Format(time.RFC3339),
			"now", now.Format(time.RFC3339))
		return time.Time{}, false
	}
	if s.staleAfter > 0 && now.Sub(last) > s.staleAfter {
		s.logger.Info("Ignoring stale last run state",
			"last_run", last.Format(time.RFC3339),
			"stale_after", s.staleAfter)
		return time.Time{}, false
	}

	return last, true
}

// Save atomically records t as the last completed run. The value is
// written to a temporary file, fsynced and renamed into place.
func (s *Store) Save(t time.Time) error {
	data := []byte(strconv.FormatInt(t.Unix(), 10))
	tmp := s.path + ".tmp"

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	// Make the rename durable across power loss
	if dir, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	return nil
}
