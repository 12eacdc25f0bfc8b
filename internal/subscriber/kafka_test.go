package subscriber

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestNewKafkaSubscriber_Validation(t *testing.T) {
	if _, err := NewKafkaSubscriber(nil, DefaultConfig()); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaSubscriber([]string{"localhost:9092"}, Config{}); err == nil {
		t.Error("expected error without consumer group")
	}
}

func TestKafkaSubscriber_ReaderConfig(t *testing.T) {
	s, err := NewKafkaSubscriber([]string{"localhost:9092"}, Config{ConsumerGroup: "watch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rc := s.readerConfig("t766.sync.success")
	if rc.Topic != "t766.sync.success" || rc.GroupID != "watch" {
		t.Errorf("reader config = %+v", rc)
	}
	if rc.StartOffset != kafka.LastOffset {
		t.Errorf("StartOffset = %d, expected LastOffset", rc.StartOffset)
	}

	s.cfg.FromStart = true
	if got := s.readerConfig("t766.sync.success").StartOffset; got != kafka.FirstOffset {
		t.Errorf("StartOffset = %d, expected FirstOffset", got)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
