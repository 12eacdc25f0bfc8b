package subscriber

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemorySubscriber_ReceivesEmittedEvents(t *testing.T) {
	pub := events.NewMemoryPublisher()
	emitter := events.NewEmitter(pub, logging.NewNop())
	sub := NewMemorySubscriber(pub, Config{Logger: logging.NewNop()})
	defer func() { _ = sub.Close() }()

	var mu sync.Mutex
	var got []events.SyncEvent
	handler := SyncEventHandler(func(_ context.Context, event events.SyncEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		return nil
	})
	if err := SubscribeAll(context.Background(), sub, handler); err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	ctx := context.Background()
	emitter.Emit(ctx, &models.SyncStatus{Hostname: "A", Status: models.StatusFailure, ExitCode: 1, Timestamp: "20240101090500"}, "sync:20240101090500:A")
	emitter.Emit(ctx, &models.SyncStatus{Hostname: "B", Status: models.StatusSuccess, Timestamp: "20240101090600"}, "sync:20240101090600:B")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	byHost := map[string]events.SyncEvent{}
	for _, e := range got {
		byHost[e.Hostname] = e
	}
	if byHost["A"].Status != models.StatusFailure || byHost["A"].Key != "sync:20240101090500:A" {
		t.Errorf("event A = %+v", byHost["A"])
	}
	if byHost["B"].Status != models.StatusSuccess {
		t.Errorf("event B = %+v", byHost["B"])
	}
}

func TestMemorySubscriber_SubscribeDuplicate(t *testing.T) {
	sub := NewMemorySubscriber(events.NewMemoryPublisher(), Config{Logger: logging.NewNop()})
	defer func() { _ = sub.Close() }()

	handler := func(context.Context, string, []byte) error { return nil }
	if err := sub.Subscribe(context.Background(), "t766.sync.success", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sub.Subscribe(context.Background(), "t766.sync.success", handler); err == nil {
		t.Fatal("expected error for duplicate subscription")
	}
}

func TestMemorySubscriber_Unsubscribe(t *testing.T) {
	pub := events.NewMemoryPublisher()
	sub := NewMemorySubscriber(pub, Config{Logger: logging.NewNop()})
	defer func() { _ = sub.Close() }()

	if err := sub.Unsubscribe("t766.sync.success"); err == nil {
		t.Fatal("expected error unsubscribing from unknown subject")
	}

	handler := func(context.Context, string, []byte) error { return nil }
	if err := sub.Subscribe(context.Background(), "t766.sync.success", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sub.Unsubscribe("t766.sync.success"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Resubscribing after unsubscribe is allowed
	if err := sub.Subscribe(context.Background(), "t766.sync.success", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemorySubscriber_StopsWhenPublisherCloses(t *testing.T) {
	pub := events.NewMemoryPublisher()
	sub := NewMemorySubscriber(pub, Config{Logger: logging.NewNop()})

	handler := func(context.Context, string, []byte) error { return nil }
	if err := sub.Subscribe(context.Background(), "t766.sync.success", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = pub.Close()

	done := make(chan struct{})
	go func() {
		_ = sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
