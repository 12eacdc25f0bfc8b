package subscriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/utils"
)

// NATSSubscriber implements Subscriber for NATS JetStream
type NATSSubscriber struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	cfg           Config
	logger        *logging.Logger
	subscriptions map[string]*nats.Subscription
	mu            sync.Mutex
}

// NewNATSSubscriber connects to url and makes sure the sync stream exists
func NewNATSSubscriber(url string, cfg Config) (*NATSSubscriber, error) {
	logger := cfg.logger("subscriber.nats")
	conn, err := nats.Connect(url,
		nats.Name("t766-subscriber-"+cfg.ConsumerID),
		nats.Timeout(utils.BrokerConnectTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s, err := newNATSSubscriberWithConn(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func newNATSSubscriberWithConn(conn *nats.Conn, cfg Config) (*NATSSubscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := events.EnsureStream(js); err != nil {
		return nil, err
	}

	return &NATSSubscriber{
		conn:          conn,
		js:            js,
		cfg:           cfg,
		logger:        cfg.logger("subscriber.nats"),
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// durableName builds a consumer name; JetStream forbids dots and wildcards
func (s *NATSSubscriber) durableName(subject string) string {
	sanitized := strings.NewReplacer(".", "_", "*", "all", ">", "rest").Replace(subject)
	return fmt.Sprintf("%s-%s", s.cfg.ConsumerGroup, sanitized)
}

// Subscribe subscribes to a subject with the given handler
func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.AckWait(30 * time.Second),
		nats.MaxDeliver(3),
	}
	if s.cfg.FromStart {
		opts = append(opts, nats.DeliverAll())
	} else {
		opts = append(opts, nats.DeliverNew())
	}
	if s.cfg.ConsumerGroup != "" {
		opts = append(opts, nats.Durable(s.durableName(subject)))
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, msg.Subject, msg.Data); err != nil {
			s.logger.Error("Failed to handle message",
				"subject", msg.Subject,
				"error", err,
				"data_preview", string(msg.Data[:min(100, len(msg.Data))]))
			// Undecodable events will not improve on redelivery
			_ = msg.Term()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.subscriptions[subject] = sub
	s.logger.Info("Subscribed to subject", "subject", subject, "group", s.cfg.ConsumerGroup)
	return nil
}

// Unsubscribe unsubscribes from a subject
func (s *NATSSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", subject, err)
	}
	delete(s.subscriptions, subject)
	return nil
}

// Close closes all subscriptions and the connection
func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for subject, sub := range s.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
	}
	s.subscriptions = make(map[string]*nats.Subscription)

	s.conn.Close()
	return nil
}
