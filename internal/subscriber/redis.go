package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/utils"
)

// RedisConfig points at the Redis instance the collector publishes to
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Stream   string // Stream prefix (default: "t766")
}

// RedisSubscriber implements Subscriber for Redis Streams consumer groups
type RedisSubscriber struct {
	client        *redis.Client
	streamPrefix  string
	cfg           Config
	logger        *logging.Logger
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// NewRedisSubscriber creates a new Redis Streams subscriber
func NewRedisSubscriber(rc RedisConfig, cfg Config) (*RedisSubscriber, error) {
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("redis subscriber requires a consumer group")
	}

	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		addr := rc.URL
		if addr == "" {
			addr = "localhost:6379"
		}
		opts = &redis.Options{Addr: addr, Password: rc.Password, DB: rc.DB}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), utils.BrokerConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := rc.Stream
	if prefix == "" {
		prefix = "t766"
	}

	return &RedisSubscriber{
		client:        client,
		streamPrefix:  prefix,
		cfg:           cfg,
		logger:        cfg.logger("subscriber.redis"),
		subscriptions: make(map[string]context.CancelFunc),
	}, nil
}

// streamName matches the publisher's <prefix>:<subject> layout
func (s *RedisSubscriber) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", s.streamPrefix, subject)
}

// Subscribe subscribes to a stream with the given handler
func (s *RedisSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streamName(subject)
	if _, exists := s.subscriptions[stream]; exists {
		return fmt.Errorf("already subscribed to stream: %s", stream)
	}

	start := "$"
	if s.cfg.FromStart {
		start = "0"
	}
	err := s.client.XGroupCreateMkStream(ctx, stream, s.cfg.ConsumerGroup, start).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.subscriptions[stream] = cancel

	s.wg.Add(1)
	go s.consume(subCtx, stream, subject, handler)

	s.logger.Info("Subscribed to Redis stream", "stream", stream, "group", s.cfg.ConsumerGroup, "consumer", s.cfg.ConsumerID)
	return nil
}

// consume reads messages from the stream and processes them
func (s *RedisSubscriber) consume(ctx context.Context, stream, subject string, handler MessageHandler) {
	defer s.wg.Done()

	for ctx.Err() == nil {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.cfg.ConsumerGroup,
			Consumer: s.cfg.ConsumerID,
			Streams:  []string{stream, ">"},
			Count:    100,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.logger.Error("Failed to read from stream", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, st := range streams {
			for _, message := range st.Messages {
				data, ok := message.Values["data"].(string)
				if !ok {
					s.logger.Warn("Invalid message format", "stream", stream, "id", message.ID)
					s.client.XAck(ctx, stream, s.cfg.ConsumerGroup, message.ID)
					continue
				}

				if err := handler(ctx, subject, []byte(data)); err != nil {
					// Left pending for redelivery
					s.logger.Error("Failed to handle message", "stream", stream, "id", message.ID, "error", err)
					continue
				}

				if err := s.client.XAck(ctx, stream, s.cfg.ConsumerGroup, message.ID).Err(); err != nil {
					s.logger.Error("Failed to ACK message", "stream", stream, "id", message.ID, "error", err)
				}
			}
		}
	}
}

// Unsubscribe unsubscribes from a stream
func (s *RedisSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streamName(subject)
	cancel, exists := s.subscriptions[stream]
	if !exists {
		return fmt.Errorf("not subscribed to stream: %s", stream)
	}
	cancel()
	delete(s.subscriptions, stream)
	return nil
}

// Close stops all consumers and closes the connection
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	for stream, cancel := range s.subscriptions {
		cancel()
		delete(s.subscriptions, stream)
	}
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	return nil
}
