package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/t766/control/internal/logging"
)

// KafkaSubscriber implements Subscriber for Kafka consumer groups
type KafkaSubscriber struct {
	brokers []string
	cfg     Config
	logger  *logging.Logger
	readers map[string]*kafka.Reader
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewKafkaSubscriber creates a new Kafka subscriber
func NewKafkaSubscriber(brokers []string, cfg Config) (*KafkaSubscriber, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("kafka subscriber requires a consumer group")
	}

	return &KafkaSubscriber{
		brokers: brokers,
		cfg:     cfg,
		logger:  cfg.logger("subscriber.kafka"),
		readers: make(map[string]*kafka.Reader),
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

func (s *KafkaSubscriber) readerConfig(topic string) kafka.ReaderConfig {
	start := kafka.LastOffset
	if s.cfg.FromStart {
		start = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:           s.brokers,
		GroupID:           s.cfg.ConsumerGroup,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           time.Second,
		CommitInterval:    time.Second,
		StartOffset:       start,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			s.logger.Debug(fmt.Sprintf(msg, args...))
		}),
	}
}

// Subscribe subscribes to a topic with the given handler. Topics are named
// after subjects, as the publisher writes them.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.readers[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(s.readerConfig(subject))
	s.readers[subject] = reader

	subCtx, cancel := context.WithCancel(ctx)
	s.cancels[subject] = cancel

	s.wg.Add(1)
	go s.consume(subCtx, reader, subject, handler)

	s.logger.Info("Subscribed to Kafka topic", "topic", subject, "group", s.cfg.ConsumerGroup)
	return nil
}

// consume reads messages from the topic and processes them
func (s *KafkaSubscriber) consume(ctx context.Context, reader *kafka.Reader, subject string, handler MessageHandler) {
	defer s.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to fetch message", "topic", subject, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, subject, msg.Value); err != nil {
			// Not committed, so it is reprocessed
			s.logger.Error("Failed to handle message", "topic", subject, "offset", msg.Offset, "error", err)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Error("Failed to commit message", "topic", subject, "offset", msg.Offset, "error", err)
		}
	}
}

// Unsubscribe unsubscribes from a topic
func (s *KafkaSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, exists := s.cancels[subject]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}
	cancel()
	delete(s.cancels, subject)

	if reader, ok := s.readers[subject]; ok {
		if err := reader.Close(); err != nil {
			s.logger.Warn("Failed to close reader", "topic", subject, "error", err)
		}
		delete(s.readers, subject)
	}
	return nil
}

// Close closes all readers and subscriptions
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	for topic, cancel := range s.cancels {
		cancel()
		delete(s.cancels, topic)
	}

	var lastErr error
	for topic, reader := range s.readers {
		if err := reader.Close(); err != nil {
			s.logger.Warn("Failed to close reader", "topic", topic, "error", err)
			lastErr = err
		}
		delete(s.readers, topic)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return lastErr
}
