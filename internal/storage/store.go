// Package storage persists node sync reports in an embedded bbolt database.
//
// All entries live in a single bucket keyed by sync:<timestamp>:<hostname>,
// so bbolt's byte-ordered cursor walks them oldest first. Inserts run in a
// read-write transaction that also performs size-capped eviction, which
// makes "evict oldest, then insert" atomic with respect to concurrent
// submissions and crashes.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("puppet_sync")

// ErrRecordTooLarge is returned by Insert when the serialized record exceeds
// the configured size cap. Nothing is written in that case.
var ErrRecordTooLarge = errors.New("record too large")

// Options bounds the store's size.
type Options struct {
	MaxKeys       int // Entry cap
	KeysToRemove  int // Entries evicted once the cap is reached
	MaxRecordSize int // Max serialized record size in bytes
}

// DefaultOptions returns the collector's default retention settings
func DefaultOptions() Options {
	return Options{
		MaxKeys:       500,
		KeysToRemove:  100,
		MaxRecordSize: 1_048_576,
	}
}

// BoltStore implements StatusStore on top of bbolt
type BoltStore struct {
	db     *bolt.DB
	opts   Options
	logger *logging.Logger
}

var _ StatusStore = (*BoltStore)(nil)

// Open opens (or creates) the database file at path.
func Open(path string, opts Options, logger *logging.Logger) (*BoltStore, error) {
	if opts.MaxKeys < 1 || opts.KeysToRemove < 1 || opts.MaxRecordSize < 1 {
		return nil, fmt.Errorf("invalid store options: %+v", opts)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open status store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, opts: opts, logger: logger}, nil
}

// Insert stores status, evicting the oldest KeysToRemove entries in the
// same transaction when the store already holds MaxKeys entries.
func (s *BoltStore) Insert(status *models.SyncStatus) (string, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}

	if len(data) > s.opts.MaxRecordSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrRecordTooLarge, len(data), s.opts.MaxRecordSize)
	}

	key := status.Key()
	var (
		keyCount int
		evicted  int
	)

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)

		keyCount = countKeys(b)
		if keyCount >= s.opts.MaxKeys {
			oldest := make([][]byte, 0, s.opts.KeysToRemove)
			c := b.Cursor()
			for k, _ := c.First(); k != nil && len(oldest) < s.opts.KeysToRemove; k, _ = c.Next() {
				oldest = append(oldest, append([]byte(nil), k...))
			}
			for _, k := range oldest {
				if err := b.Delete(k); err != nil {
					return fmt.Errorf("failed to evict %s: %w", k, err)
				}
			}
			evicted = len(oldest)
		}

		return b.Put([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert %s: %w", key, err)
	}

	if evicted > 0 {
		s.logger.Info("Storage limit reached, removed oldest entries",
			"key_count", keyCount,
			"removed", evicted)
	}

	return key, nil
}

// Scan yields stored statuses lazily inside a single read transaction.
// Entries that fail to decode are logged and skipped.
func (s *BoltStore) Scan() iter.Seq[models.SyncStatus] {
	return func(yield func(models.SyncStatus) bool) {
		err := s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketName).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var status models.SyncStatus
				if err := json.Unmarshal(v, &status); err != nil {
					s.logger.Warn("Failed to deserialize sync data",
						"key", string(k),
						"error", err)
					continue
				}
				if !yield(status) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("Status scan aborted", "error", err)
		}
	}
}

// Count returns the number of stored entries
func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(bucketName))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// countKeys walks the bucket. The store is capped at a few hundred
// entries, so a cursor walk is cheap.
func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}
