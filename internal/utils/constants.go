package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// EventPublishTimeout bounds a single sync event publish
	EventPublishTimeout = 5 * time.Second

	// ShutdownTimeout bounds graceful HTTP server shutdown
	ShutdownTimeout = 10 * time.Second

	// BrokerConnectTimeout is the timeout for the initial broker ping
	BrokerConnectTimeout = 5 * time.Second
)

// =============================================================================
// Event Constants
// =============================================================================

// EventsType represents the sync event backend
type EventsType string

const (
	// EventsTypeNone disables event publishing (default)
	EventsTypeNone EventsType = "none"

	// EventsTypeMemory represents in-memory channels (for testing)
	EventsTypeMemory EventsType = "memory"

	// EventsTypeNATS represents NATS JetStream
	EventsTypeNATS EventsType = "nats"

	// EventsTypeRedis represents Redis Streams
	EventsTypeRedis EventsType = "redis"

	// EventsTypeKafka represents Apache Kafka
	EventsTypeKafka EventsType = "kafka"
)

// SyncSubjectPrefix prefixes sync event subjects: t766.sync.<status>
const SyncSubjectPrefix = "t766.sync"

// =============================================================================
// HTTP Constants
// =============================================================================

const (
	// HeaderAPIKey carries the API key for the read API
	HeaderAPIKey = "X-API-Key"

	// HeaderRequestID carries the per-request ID
	HeaderRequestID = "X-Request-ID"

	// ContentTypeTar is served for manifest bundles
	ContentTypeTar = "application/x-tar"
)
