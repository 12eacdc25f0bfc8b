package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig represents Apache Kafka producer configuration
type KafkaConfig struct {
	Brokers      []string      // Kafka broker addresses
	BatchTimeout time.Duration // Batch timeout for producer (default: 10ms)
	MaxRetries   int           // Max attempts per write (default: 3)
}

// KafkaPublisher writes events with one writer per topic
type KafkaPublisher struct {
	config  KafkaConfig
	writers map[string]*kafka.Writer
	mu      sync.Mutex
}

func newKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &KafkaPublisher{
		config:  cfg,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

func (p *KafkaPublisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           p.config.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            p.config.MaxRetries,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish writes a message keyed by subject so a status stays on one partition
func (p *KafkaPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	err := p.writer(subject).WriteMessages(ctx, kafka.Message{
		Key:   []byte(subject),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// Close closes all writers
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
		delete(p.writers, topic)
	}
	return lastErr
}
