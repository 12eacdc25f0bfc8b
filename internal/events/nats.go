package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/t766/control/internal/utils"
)

// StreamName is the JetStream stream holding sync events
const StreamName = "T766_SYNC"

// NATSPublisher publishes to NATS JetStream
type NATSPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

func newNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Timeout(utils.BrokerConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p, err := newNATSPublisherWithConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// newNATSPublisherWithConn creates the publisher on an existing connection (used in tests)
func newNATSPublisherWithConn(conn *nats.Conn) (*NATSPublisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := EnsureStream(js); err != nil {
		return nil, err
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

// Publish publishes a message and waits for the JetStream ack
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Close closes the connection
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// EnsureStream creates the sync event stream if it does not exist yet, so
// events persist until consumed.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to look up stream %s: %w", StreamName, err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{utils.SyncSubjectPrefix + ".>"},
			Storage:  nats.FileStorage,
		})
		if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
		}
	}
	return nil
}
