// Package events fans stored sync reports out to a message broker so other
// systems can react to node failures without polling the collector.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/utils"
)

// Publisher publishes messages to a broker
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// SyncEvent is the message body published after a report is stored
type SyncEvent struct {
	Hostname  string        `json:"hostname"`
	Status    models.Status `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Timestamp string        `json:"timestamp"`
	Key       string        `json:"key"`
}

// Subject returns the subject a status is published on
func Subject(status models.Status) string {
	return fmt.Sprintf("%s.%s", utils.SyncSubjectPrefix, status)
}

// Emitter publishes SyncEvents, logging failures instead of returning them.
type Emitter struct {
	publisher Publisher
	logger    *logging.Logger
}

// NewEmitter wraps publisher. A nil publisher yields an emitter that drops events.
func NewEmitter(publisher Publisher, logger *logging.Logger) *Emitter {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Emitter{publisher: publisher, logger: logger}
}

// Emit publishes the event for a stored status
func (e *Emitter) Emit(ctx context.Context, status *models.SyncStatus, key string) {
	event := SyncEvent{
		Hostname:  status.Hostname,
		Status:    status.Status,
		ExitCode:  status.ExitCode,
		Timestamp: status.Timestamp,
		Key:       key,
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Failed to marshal sync event", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, utils.EventPublishTimeout)
	defer cancel()

	subject := Subject(status.Status)
	if err := e.publisher.Publish(ctx, subject, data); err != nil {
		e.logger.Warn("Failed to publish sync event",
			"subject", subject,
			"key", key,
			"error", err)
		return
	}

	e.logger.Debug("Published sync event", "subject", subject, "key", key)
}

// Close closes the underlying publisher
func (e *Emitter) Close() error {
	return e.publisher.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (nopPublisher) Close() error { return nil }

// Subjects returns every subject sync events are published on
func Subjects() []string {
	return []string{
		Subject(models.StatusSuccess),
		Subject(models.StatusFailure),
		Subject(models.StatusInterrupted),
	}
}
