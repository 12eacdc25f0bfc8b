package subscriber

import (
	"fmt"
	"strings"

	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/utils"
)

// NewSubscriber creates a Subscriber for the configured events backend
func NewSubscriber(cfg config.EventsConfig, subCfg Config) (Subscriber, error) {
	eventsType := utils.EventsType(strings.ToLower(cfg.Type))

	switch eventsType {
	case utils.EventsTypeNATS:
		return NewNATSSubscriber(cfg.URL, subCfg)
	case utils.EventsTypeRedis:
		return NewRedisSubscriber(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
		}, subCfg)
	case utils.EventsTypeKafka:
		return NewKafkaSubscriber(cfg.KafkaBrokers, subCfg)
	case utils.EventsTypeMemory:
		return nil, fmt.Errorf("memory events are in-process only; use NewMemorySubscriber")
	case utils.EventsTypeNone, "":
		return nil, fmt.Errorf("event publishing is disabled (events.type = %q)", cfg.Type)
	default:
		return nil, fmt.Errorf("unsupported events type: %s", eventsType)
	}
}
