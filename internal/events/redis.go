package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/t766/control/internal/utils"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // Redis URL (e.g., redis://localhost:6379)
	Password string // Optional password
	DB       int    // Database number (default: 0)
	Stream   string // Stream prefix (default: "t766")
}

// RedisPublisher appends events to Redis streams named <prefix>:<subject>
type RedisPublisher struct {
	client *redis.Client
	config RedisConfig
}

func newRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), utils.BrokerConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "t766"
	}

	return &RedisPublisher{client: client, config: cfg}, nil
}

func (p *RedisPublisher) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", p.config.Stream, subject)
}

// Publish adds a message to the subject's stream
func (p *RedisPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	stream := p.streamName(subject)

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": data,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}

	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
