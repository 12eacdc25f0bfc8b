package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// setupTestNATS starts an embedded JetStream-enabled NATS server
func setupTestNATS(t *testing.T) string {
	t.Helper()
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSPublisher_CreatesStream(t *testing.T) {
	url := setupTestNATS(t)

	pub, err := newNATSPublisher(url)
	if err != nil {
		t.Fatalf("Failed to create NATS publisher: %v", err)
	}
	defer func() { _ = pub.Close() }()

	info, err := pub.js.StreamInfo(StreamName)
	if err != nil {
		t.Fatalf("stream not created: %v", err)
	}
	if len(info.Config.Subjects) != 1 || info.Config.Subjects[0] != "t766.sync.>" {
		t.Errorf("stream subjects = %v", info.Config.Subjects)
	}

	// A second publisher reuses the existing stream.
	again, err := newNATSPublisher(url)
	if err != nil {
		t.Fatalf("second publisher failed: %v", err)
	}
	_ = again.Close()
}

func TestNATSPublisher_EmitDelivers(t *testing.T) {
	url := setupTestNATS(t)

	pub, err := NewPublisher(config.EventsConfig{Type: "nats", URL: url})
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	emitter := NewEmitter(pub, logging.NewNop())
	defer func() { _ = emitter.Close() }()

	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()
	js, err := conn.JetStream()
	if err != nil {
		t.Fatalf("JetStream failed: %v", err)
	}

	sub, err := js.SubscribeSync("t766.sync.failure", nats.DeliverAll())
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	status := &models.SyncStatus{Hostname: "db-1", Status: models.StatusFailure, ExitCode: 1, Timestamp: "20250102090500"}
	emitter.Emit(context.Background(), status, status.Key())

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no message received: %v", err)
	}

	var event SyncEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	if event.Hostname != "db-1" || event.Key != "sync:20250102090500:db-1" {
		t.Errorf("event = %+v", event)
	}
}

func TestNATSPublisher_InvalidURL(t *testing.T) {
	pub, err := newNATSPublisher("nats://127.0.0.1:1")
	if err == nil {
		_ = pub.Close()
		t.Fatal("Expected error with invalid URL")
	}
}
