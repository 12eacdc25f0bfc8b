// Package checkin manages the node-local check-in buffer: a flat text file
// of records separated by three newlines, flushed to the collector with
// the next sync report.
package checkin

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Separator delimits records in the buffer file
const Separator = "\n\n\n"

// TimeLayout is the timestamp prefix of a record's leading line
const TimeLayout = "2006-01-02 15:04:05"

// Buffer is the live check-in file plus the archive it is flushed into.
type Buffer struct {
	path    string
	oldPath string
	mu      sync.Mutex
}

// New creates a Buffer. Neither file needs to exist.
func New(path, oldPath string) *Buffer {
	return &Buffer{path: path, oldPath: oldPath}
}

// Read returns the buffered records in file order. A missing file yields
// no records. Whitespace-only fragments are dropped.
func (b *Buffer) Read() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read check-ins: %w", err)
	}

	records := make([]string, 0)
	for _, fragment := range strings.Split(string(data), Separator) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		records = append(records, fragment)
	}
	return records, nil
}

// Clear appends the live file's contents to the old file, then truncates
// the live file. A missing live file is a no-op.
func (b *Buffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	live, err := os.OpenFile(b.path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open check-ins: %w", err)
	}
	defer func() { _ = live.Close() }()

	if err := os.MkdirAll(filepath.Dir(b.oldPath), 0o755); err != nil {
		return fmt.Errorf("failed to create check-in archive directory: %w", err)
	}
	old, err := os.OpenFile(b.oldPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open check-in archive: %w", err)
	}

	if _, err := io.Copy(old, live); err != nil {
		_ = old.Close()
		return fmt.Errorf("failed to archive check-ins: %w", err)
	}
	if err := old.Close(); err != nil {
		return fmt.Errorf("failed to archive check-ins: %w", err)
	}

	if err := live.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate check-ins: %w", err)
	}
	return nil
}

// Append writes a "<timestamp> - <id>" record to the live file.
func (b *Buffer) Append(now time.Time, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("check-in id is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create check-in directory: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open check-ins: %w", err)
	}

	record := Format(now, id) + Separator
	if _, err := f.WriteString(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write check-in: %w", err)
	}
	return f.Close()
}

// Format renders a record's leading line
func Format(now time.Time, id string) string {
	return now.Format(TimeLayout) + " - " + id
}
