package services

import (
	"iter"

	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/storage"
)

// memStore is a slice-backed StatusStore kept in insertion order
type memStore struct {
	entries []models.SyncStatus
}

var _ storage.StatusStore = (*memStore)(nil)

func (m *memStore) Insert(status *models.SyncStatus) (string, error) {
	m.entries = append(m.entries, *status)
	return status.Key(), nil
}

func (m *memStore) Scan() iter.Seq[models.SyncStatus] {
	return func(yield func(models.SyncStatus) bool) {
		for _, e := range m.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func (m *memStore) Count() (int, error) { return len(m.entries), nil }
func (m *memStore) Close() error        { return nil }

func entry(host string, status models.Status, ts string, checkins ...string) models.SyncStatus {
	if checkins == nil {
		checkins = []string{}
	}
	return models.SyncStatus{
		Hostname:    host,
		Status:      status,
		Timestamp:   ts,
		Logs:        "log " + ts,
		CheckinLogs: checkins,
	}
}
