package storage

import (
	"iter"

	"github.com/t766/control/internal/models"
)

// StatusStore is the append-only status store consumed by the query layer
// and the submission handler.
type StatusStore interface {
	// Insert stores a status under sync:<timestamp>:<hostname>, evicting the
	// oldest entries first when the store is at capacity. Returns the key.
	Insert(status *models.SyncStatus) (string, error)

	// Scan yields every decodable status in key (chronological) order.
	// Consumers must not write to the store while ranging over Scan.
	Scan() iter.Seq[models.SyncStatus]

	// Count returns the number of stored entries.
	Count() (int, error)

	// Close releases the underlying database.
	Close() error
}
