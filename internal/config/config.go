package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the complete application configuration.
// The collector reads Server, Storage, Manifests, Auth and Events;
// the agent reads Agent. Both read Logging.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Manifests ManifestsConfig `mapstructure:"manifests"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Events    EventsConfig    `mapstructure:"events"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents collector HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	HTTPPort     int           `mapstructure:"http_port"`
	BodyLimit    int           `mapstructure:"body_limit"`    // Max request body in bytes (default: 4MB)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // default: 60s, bundles can be large
}

// StorageConfig represents status store configuration
type StorageConfig struct {
	Path          string `mapstructure:"path"`            // bbolt database file
	MaxKeys       int    `mapstructure:"max_keys"`        // Entry cap (default: 500)
	KeysToRemove  int    `mapstructure:"keys_to_remove"`  // Oldest entries evicted when the cap is hit (default: 100)
	MaxRecordSize int    `mapstructure:"max_record_size"` // Max serialized record in bytes (default: 1MiB)
	BucketMinutes int    `mapstructure:"bucket_minutes"`  // Width of a display interval (default: 15)
	MatrixDepth   int    `mapstructure:"matrix_depth"`    // Intervals returned by the sync table (default: 20)
	Timezone      string `mapstructure:"timezone"`        // Collector timezone (e.g., "Europe/Berlin", "+09:00"); empty means local
}

// ManifestsConfig points at the directory tree served to agents
type ManifestsConfig struct {
	Root string `mapstructure:"root"` // Contains manifests/ and modules/ (default: /puppet)
}

// AuthConfig represents API key authentication for the read API
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"api_keys"`
}

// EventsConfig represents sync event publishing configuration
type EventsConfig struct {
	Type     string `mapstructure:"type"` // none (default), memory, nats, redis, kafka
	URL      string `mapstructure:"url"`  // Broker URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Password string `mapstructure:"password"`

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`
	RedisStream string `mapstructure:"redis_stream"` // Stream prefix (default: "t766")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
}

// AgentConfig represents node agent configuration
type AgentConfig struct {
	PrimaryURL     string        `mapstructure:"primary_url"`     // Base URL, trailing slash expected
	FallbackURL    string        `mapstructure:"fallback_url"`    // Base URL, trailing slash expected
	Hostname       string        `mapstructure:"hostname"`        // Override for os.Hostname
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // Per-request timeout (default: 20s)
	MaxLogBytes    int           `mapstructure:"max_log_bytes"`   // Tail kept per log field (default: 256KiB)

	StateFile      string `mapstructure:"state_file"`       // Persisted last_run
	CheckinFile    string `mapstructure:"checkin_file"`     // Live check-in buffer
	CheckinOldFile string `mapstructure:"checkin_old_file"` // Flushed check-ins
	ApplyCommand   string `mapstructure:"apply_command"`    // default: puppet

	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// ScheduleConfig represents the agent's run cadence and failure policy
type ScheduleConfig struct {
	Interval               time.Duration `mapstructure:"interval"`                 // Cadence aligned to clock boundaries (default: 30m)
	CatchUpWindow          time.Duration `mapstructure:"catch_up_window"`          // default: 15m
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"` // default: 5
	MinBackoff             time.Duration `mapstructure:"min_backoff"`              // default: 30s
	MaxBackoff             time.Duration `mapstructure:"max_backoff"`              // default: 5m
	PollInterval           time.Duration `mapstructure:"poll_interval"`            // Wait slice (default: 10s)
	StaleAfter             time.Duration `mapstructure:"stale_after"`              // last_run older than this is ignored (default: 168h)
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // Rotate file output past this size (default: 5)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}

	return nil
}

// Validate validates storage configuration
func (c *StorageConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}

	if c.MaxKeys < 1 {
		return fmt.Errorf("max_keys must be positive")
	}

	if c.KeysToRemove < 1 || c.KeysToRemove > c.MaxKeys {
		return fmt.Errorf("keys_to_remove must be between 1 and max_keys")
	}

	if c.MaxRecordSize < 1 {
		return fmt.Errorf("max_record_size must be positive")
	}

	if c.BucketMinutes < 1 || (24*60)%c.BucketMinutes != 0 {
		return fmt.Errorf("bucket_minutes must evenly divide a day, got %d", c.BucketMinutes)
	}

	if c.MatrixDepth < 1 {
		return fmt.Errorf("matrix_depth must be positive")
	}

	if c.Timezone != "" {
		if _, err := parseTimezone(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	return nil
}

// Validate validates events configuration
func (c *EventsConfig) Validate() error {
	switch c.Type {
	case "", "none", "memory":
		return nil
	case "nats", "redis":
		if c.URL == "" {
			return fmt.Errorf("events.url is required for %s", c.Type)
		}
		return nil
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("events.kafka_brokers is required for kafka")
		}
		return nil
	default:
		return fmt.Errorf("unsupported events.type: %s (supported: none, memory, nats, redis, kafka)", c.Type)
	}
}

// Validate validates agent configuration
func (c *AgentConfig) Validate() error {
	for name, raw := range map[string]string{"primary_url": c.PrimaryURL, "fallback_url": c.FallbackURL} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be http or https, got %q", name, u.Scheme)
		}
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if c.MaxLogBytes < 64 {
		return fmt.Errorf("max_log_bytes must be at least 64")
	}

	if c.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}

	if c.CheckinFile == "" || c.CheckinOldFile == "" {
		return fmt.Errorf("checkin_file and checkin_old_file are required")
	}

	if c.CheckinFile == c.CheckinOldFile {
		return fmt.Errorf("checkin_file and checkin_old_file cannot be the same")
	}

	if c.ApplyCommand == "" {
		return fmt.Errorf("apply_command is required")
	}

	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	return nil
}

// Validate validates schedule configuration
func (c *ScheduleConfig) Validate() error {
	if c.Interval < time.Minute || c.Interval%time.Minute != 0 {
		return fmt.Errorf("interval must be a whole number of minutes")
	}

	if (24*time.Hour)%c.Interval != 0 {
		return fmt.Errorf("interval must evenly divide a day, got %s", c.Interval)
	}

	if c.CatchUpWindow < 0 {
		return fmt.Errorf("catch_up_window cannot be negative")
	}

	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max_consecutive_failures must be at least 1")
	}

	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		return fmt.Errorf("backoff bounds must satisfy 0 < min_backoff <= max_backoff")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	if c.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb cannot be negative")
	}

	return nil
}
