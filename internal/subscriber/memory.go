package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
)

// MemorySubscriber drains an in-process events.MemoryPublisher
type MemorySubscriber struct {
	publisher     *events.MemoryPublisher
	subscriptions map[string]context.CancelFunc
	logger        *logging.Logger
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// NewMemorySubscriber creates a subscriber for messages sent through publisher
func NewMemorySubscriber(publisher *events.MemoryPublisher, cfg Config) *MemorySubscriber {
	return &MemorySubscriber{
		publisher:     publisher,
		subscriptions: make(map[string]context.CancelFunc),
		logger:        cfg.logger("subscriber.memory"),
	}
}

// Subscribe subscribes to a subject with the given handler
func (s *MemorySubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.subscriptions[subject] = cancel

	messages := s.publisher.Messages(subject)
	s.wg.Add(1)
	go s.consume(subCtx, subject, messages, handler)

	s.logger.Debug("Subscribed to in-memory subject", "subject", subject)
	return nil
}

func (s *MemorySubscriber) consume(ctx context.Context, subject string, messages <-chan []byte, handler MessageHandler) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-messages:
			if !ok {
				return
			}
			if err := handler(ctx, subject, data); err != nil {
				s.logger.Error("Failed to handle message", "subject", subject, "error", err)
			}
		}
	}
}

// Unsubscribe unsubscribes from a subject
func (s *MemorySubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, exists := s.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	cancel()
	delete(s.subscriptions, subject)
	return nil
}

// Close cancels all subscriptions and waits for their consumers to exit
func (s *MemorySubscriber) Close() error {
	s.mu.Lock()
	for subject, cancel := range s.subscriptions {
		cancel()
		delete(s.subscriptions, subject)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
