// Package subscriber consumes sync events published by the collector.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
)

// MessageHandler is a function that processes incoming messages
type MessageHandler func(ctx context.Context, subject string, data []byte) error

// Subscriber defines the interface for message subscription
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with the given handler
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the subscriber and releases resources
	Close() error
}

// Config holds common subscriber configuration
type Config struct {
	// ConsumerGroup shares delivery between consumers with the same name.
	// Empty means a private, non-durable consumer where the broker allows it.
	ConsumerGroup string

	// ConsumerID names this consumer within its group
	ConsumerID string

	// FromStart replays retained events instead of only new ones
	FromStart bool

	Logger *logging.Logger
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ConsumerGroup: "t766-watch",
		ConsumerID:    "watch-1",
	}
}

func (c Config) logger(component string) *logging.Logger {
	if c.Logger == nil {
		return logging.Global().With("component", component)
	}
	return c.Logger.With("component", component)
}

// SyncEventHandler adapts fn into a MessageHandler decoding SyncEvent bodies
func SyncEventHandler(fn func(ctx context.Context, event events.SyncEvent) error) MessageHandler {
	return func(ctx context.Context, subject string, data []byte) error {
		var event events.SyncEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("invalid sync event on %s: %w", subject, err)
		}
		return fn(ctx, event)
	}
}

// SubscribeAll subscribes handler to every sync event subject
func SubscribeAll(ctx context.Context, s Subscriber, handler MessageHandler) error {
	for _, subject := range events.Subjects() {
		if err := s.Subscribe(ctx, subject, handler); err != nil {
			return err
		}
	}
	return nil
}
