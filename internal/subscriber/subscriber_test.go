package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/models"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	subjects []string
	failOn   string
}

func (r *recordingSubscriber) Subscribe(_ context.Context, subject string, _ MessageHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subject == r.failOn {
		return errors.New("refused")
	}
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingSubscriber) Unsubscribe(string) error { return nil }
func (r *recordingSubscriber) Close() error { return nil }

func TestSubscribeAll(t *testing.T) {
	rec := &recordingSubscriber{}
	if err := SubscribeAll(context.Background(), rec, nil); err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	want := []string{"t766.sync.success", "t766.sync.failure", "t766.sync.interrupted"}
	if len(rec.subjects) != len(want) {
		t.Fatalf("subjects = %v, expected %v", rec.subjects, want)
	}
	for i := range want {
		if rec.subjects[i] != want[i] {
			t.Errorf("subjects[%d] = %s, expected %s", i, rec.subjects[i], want[i])
		}
	}
}

func TestSubscribeAll_StopsOnError(t *testing.T) {
	rec := &recordingSubscriber{failOn: events.Subject(models.StatusFailure)}
	if err := SubscribeAll(context.Background(), rec, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.subjects) != 1 {
		t.Errorf("expected 1 subscription before the failure, got %d", len(rec.subjects))
	}
}

func TestSyncEventHandler(t *testing.T) {
	var got events.SyncEvent
	handler := SyncEventHandler(func(_ context.Context, event events.SyncEvent) error {
		got = event
		return nil
	})

	data := []byte(`{"hostname":"web-01","status":"failure","exit_code":4,"timestamp":"20240101090500","key":"sync:20240101090500:web-01"}`)
	if err := handler(context.Background(), "t766.sync.failure", data); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if got.Hostname != "web-01" || got.Status != models.StatusFailure || got.ExitCode != 4 {
		t.Errorf("decoded event = %+v", got)
	}

	if err := handler(context.Background(), "t766.sync.failure", []byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConsumerGroup == "" || cfg.ConsumerID == "" {
		t.Errorf("DefaultConfig() = %+v, expected group and id", cfg)
	}
	if cfg.FromStart {
		t.Error("expected tailing by default")
	}
}
