package models

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-width layout of SyncStatus.Timestamp.
// Lexical order of timestamps in this layout equals chronological order.
const TimestampLayout = "20060102150405"

// KeyPrefix prefixes every status entry key in the store.
const KeyPrefix = "sync:"

// Status is the outcome of a single apply run on a node.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailure     Status = "failure"
	StatusInterrupted Status = "interrupted"
)

// InterruptedExitCode is recorded when the apply tool produced no usable exit code.
const InterruptedExitCode = -1

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusInterrupted:
		return true
	}
	return false
}

// SyncStatus is a node's report of one sync attempt, as stored by the collector.
type SyncStatus struct {
	Hostname    string   `json:"hostname"`
	Status      Status   `json:"status"`
	ExitCode    int      `json:"exit_code"`
	Timestamp   string   `json:"timestamp"`
	Logs        string   `json:"logs"`
	CheckinLogs []string `json:"checkin_logs"`
}

// Key returns the store key for the status: sync:<timestamp>:<hostname>.
func (s *SyncStatus) Key() string {
	return StatusKey(s.Timestamp, s.Hostname)
}

// StatusKey builds a store key from its parts.
func StatusKey(timestamp, hostname string) string {
	return KeyPrefix + timestamp + ":" + hostname
}

// FormatTimestamp renders t in TimestampLayout using t's location.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string in the given location.
func ParseTimestamp(ts string, loc *time.Location) (time.Time, error) {
	if len(ts) != len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: want %d digits", ts, len(TimestampLayout))
	}
	return time.ParseInLocation(TimestampLayout, ts, loc)
}

// CheckinLogEntry is a single check-in record together with the node it came from.
type CheckinLogEntry struct {
	Hostname string `json:"hostname"`
	Log      string `json:"log"`
}

// SyncTable is the host x interval matrix rendered by the dashboard.
type SyncTable struct {
	// Times holds interval display labels, most recent first.
	Times     []string `json:"times"`
	Hostnames []string `json:"hostnames"`
	// Syncs maps display label -> hostname -> status.
	Syncs map[string]map[string]Status `json:"syncs"`
}
