package services

import (
	"slices"
	"strings"

	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/storage"
)

// DefaultMatrixDepth is the number of intervals returned by SyncMatrix
const DefaultMatrixDepth = 20

// QueryService builds the dashboard views from full store scans. The store
// is capped at a few hundred entries, so no secondary index is kept.
type QueryService struct {
	logger      *logging.Logger
	store       storage.StatusStore
	bucketer    *Bucketer
	matrixDepth int
}

// NewQueryService creates a new QueryService
func NewQueryService(logger *logging.Logger, store storage.StatusStore, bucketer *Bucketer, matrixDepth int) *QueryService {
	if matrixDepth < 1 {
		matrixDepth = DefaultMatrixDepth
	}
	return &QueryService{
		logger:      logger,
		store:       store,
		bucketer:    bucketer,
		matrixDepth: matrixDepth,
	}
}

// SyncMatrix returns the host x interval table for the most recent intervals.
// Within an (interval, host) cell the lexically greatest timestamp wins.
func (s *QueryService) SyncMatrix() *models.SyncTable {
	latest := make(map[int64]map[string]models.SyncStatus)
	hosts := make(map[string]struct{})

	for status := range s.store.Scan() {
		hosts[status.Hostname] = struct{}{}

		idx, err := s.bucketer.Index(status.Timestamp)
		if err != nil {
			s.logger.Warn("Skipping entry with invalid timestamp",
				"hostname", status.Hostname,
				"timestamp", status.Timestamp,
				"error", err)
			continue
		}

		cell, ok := latest[idx]
		if !ok {
			cell = make(map[string]models.SyncStatus)
			latest[idx] = cell
		}
		if prev, ok := cell[status.Hostname]; ok && prev.Timestamp > status.Timestamp {
			continue
		}
		cell[status.Hostname] = status
	}

	indices := make([]int64, 0, len(latest))
	for idx := range latest {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	slices.Reverse(indices)
	if len(indices) > s.matrixDepth {
		indices = indices[:s.matrixDepth]
	}

	table := &models.SyncTable{
		Times:     make([]string, 0, len(indices)),
		Hostnames: make([]string, 0, len(hosts)),
		Syncs:     make(map[string]map[string]models.Status, len(indices)),
	}

	for _, idx := range indices {
		label := s.bucketer.Label(idx)
		row, seen := table.Syncs[label]
		if !seen {
			row = make(map[string]models.Status)
			table.Syncs[label] = row
			table.Times = append(table.Times, label)
		}
		for host, status := range latest[idx] {
			row[host] = status.Status
		}
	}

	for host := range hosts {
		table.Hostnames = append(table.Hostnames, host)
	}
	slices.Sort(table.Hostnames)

	return table
}

// LogsForInterval returns every report from hostname whose interval label
// equals label, most recent first.
func (s *QueryService) LogsForInterval(label, hostname string) []models.SyncStatus {
	logs := make([]models.SyncStatus, 0)

	for status := range s.store.Scan() {
		if status.Hostname != hostname {
			continue
		}
		got, err := s.bucketer.LabelFor(status.Timestamp)
		if err != nil || got != label {
			continue
		}
		logs = append(logs, status)
	}

	slices.SortStableFunc(logs, func(a, b models.SyncStatus) int {
		return strings.Compare(b.Timestamp, a.Timestamp)
	})
	return logs
}

// AllCheckinEntries flattens every stored check-in, most recent report first.
// Entries from the same report keep their submitted order.
func (s *QueryService) AllCheckinEntries() []models.CheckinLogEntry {
	type stamped struct {
		timestamp string
		entry     models.CheckinLogEntry
	}

	var all []stamped
	for status := range s.store.Scan() {
		for _, log := range status.CheckinLogs {
			all = append(all, stamped{
				timestamp: status.Timestamp,
				entry:     models.CheckinLogEntry{Hostname: status.Hostname, Log: log},
			})
		}
	}

	slices.SortStableFunc(all, func(a, b stamped) int {
		return strings.Compare(b.timestamp, a.timestamp)
	})

	entries := make([]models.CheckinLogEntry, len(all))
	for i, st := range all {
		entries[i] = st.entry
	}
	return entries
}

// CheckinEntry finds the first stored check-in from hostname equal to text.
// The boolean is false when there is no match.
func (s *QueryService) CheckinEntry(hostname, text string) (models.CheckinLogEntry, bool) {
	for status := range s.store.Scan() {
		if status.Hostname != hostname {
			continue
		}
		if slices.Contains(status.CheckinLogs, text) {
			return models.CheckinLogEntry{Hostname: hostname, Log: text}, true
		}
	}
	return models.CheckinLogEntry{}, false
}
