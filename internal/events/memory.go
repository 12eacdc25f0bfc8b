package events

import (
	"context"
	"fmt"
	"sync"
)

// MemoryPublisher keeps published messages in buffered per-subject channels.
// Useful for tests and single-process development.
type MemoryPublisher struct {
	channels map[string]chan []byte
	closed   bool
	mu       sync.Mutex
}

// NewMemoryPublisher creates an empty in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{channels: make(map[string]chan []byte)}
}

func (p *MemoryPublisher) channel(subject string) chan []byte {
	if ch, ok := p.channels[subject]; ok {
		return ch
	}
	ch := make(chan []byte, 1024)
	p.channels[subject] = ch
	return ch
}

// Publish enqueues a copy of data on subject's channel
func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case p.channel(subject) <- dataCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// Messages returns the channel for subject. It is closed by Close.
func (p *MemoryPublisher) Messages(subject string) <-chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel(subject)
}

// PendingCount returns the number of undrained messages for subject
func (p *MemoryPublisher) PendingCount(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[subject]; ok {
		return len(ch)
	}
	return 0
}

// Close closes all channels
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for subject, ch := range p.channels {
		close(ch)
		delete(p.channels, subject)
	}
	return nil
}
