package events

import (
	"testing"

	"github.com/t766/control/internal/config"
)

func TestNewPublisher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EventsConfig
		want    string
		wantErr bool
	}{
		{name: "empty defaults to none", cfg: config.EventsConfig{}, want: "nop"},
		{name: "none", cfg: config.EventsConfig{Type: "none"}, want: "nop"},
		{name: "memory", cfg: config.EventsConfig{Type: "MEMORY"}, want: "memory"},
		{name: "kafka without brokers", cfg: config.EventsConfig{Type: "kafka"}, wantErr: true},
		{name: "kafka", cfg: config.EventsConfig{Type: "kafka", KafkaBrokers: []string{"localhost:9092"}}, want: "kafka"},
		{name: "unknown", cfg: config.EventsConfig{Type: "rabbitmq"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewPublisher(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() { _ = pub.Close() }()

			var got string
			switch pub.(type) {
			case nopPublisher:
				got = "nop"
			case *MemoryPublisher:
				got = "memory"
			case *KafkaPublisher:
				got = "kafka"
			}
			if got != tt.want {
				t.Errorf("publisher = %T, expected %s", pub, tt.want)
			}
		})
	}
}
