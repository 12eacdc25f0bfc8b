package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("settings")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/t766")
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. T766_AGENT_PRIMARY_URL
	v.SetEnvPrefix("T766")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	// Storage defaults
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.max_keys", d.Storage.MaxKeys)
	v.SetDefault("storage.keys_to_remove", d.Storage.KeysToRemove)
	v.SetDefault("storage.max_record_size", d.Storage.MaxRecordSize)
	v.SetDefault("storage.bucket_minutes", d.Storage.BucketMinutes)
	v.SetDefault("storage.matrix_depth", d.Storage.MatrixDepth)
	v.SetDefault("storage.timezone", d.Storage.Timezone)

	v.SetDefault("manifests.root", d.Manifests.Root)

	v.SetDefault("auth.enabled", d.Auth.Enabled)

	// Events defaults
	v.SetDefault("events.type", d.Events.Type)
	v.SetDefault("events.redis_stream", d.Events.RedisStream)

	// Agent defaults
	v.SetDefault("agent.primary_url", d.Agent.PrimaryURL)
	v.SetDefault("agent.fallback_url", d.Agent.FallbackURL)
	v.SetDefault("agent.request_timeout", d.Agent.RequestTimeout)
	v.SetDefault("agent.max_log_bytes", d.Agent.MaxLogBytes)
	v.SetDefault("agent.state_file", d.Agent.StateFile)
	v.SetDefault("agent.checkin_file", d.Agent.CheckinFile)
	v.SetDefault("agent.checkin_old_file", d.Agent.CheckinOldFile)
	v.SetDefault("agent.apply_command", d.Agent.ApplyCommand)
	v.SetDefault("agent.schedule.interval", d.Agent.Schedule.Interval)
	v.SetDefault("agent.schedule.catch_up_window", d.Agent.Schedule.CatchUpWindow)
	v.SetDefault("agent.schedule.max_consecutive_failures", d.Agent.Schedule.MaxConsecutiveFailures)
	v.SetDefault("agent.schedule.min_backoff", d.Agent.Schedule.MinBackoff)
	v.SetDefault("agent.schedule.max_backoff", d.Agent.Schedule.MaxBackoff)
	v.SetDefault("agent.schedule.poll_interval", d.Agent.Schedule.PollInterval)
	v.SetDefault("agent.schedule.stale_after", d.Agent.Schedule.StaleAfter)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			HTTPPort:     5000,
			BodyLimit:    4 * 1024 * 1024,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Path:          "cn-db.bolt",
			MaxKeys:       500,
			KeysToRemove:  100,
			MaxRecordSize: 1_048_576,
			BucketMinutes: 15,
			MatrixDepth:   20,
		},
		Manifests: ManifestsConfig{
			Root: "/puppet",
		},
		Events: EventsConfig{
			Type:        "none",
			RedisStream: "t766",
		},
		Agent: AgentConfig{
			PrimaryURL:     "http://localhost:5000/",
			FallbackURL:    "http://localhost:5000/",
			RequestTimeout: 20 * time.Second,
			MaxLogBytes:    256 * 1024,
			StateFile:      "/var/lib/t766/last_run.txt",
			CheckinFile:    "/var/lib/t766/checkins.txt",
			CheckinOldFile: "/var/lib/t766/checkins.old.txt",
			ApplyCommand:   "puppet",
			Schedule: ScheduleConfig{
				Interval:               30 * time.Minute,
				CatchUpWindow:          15 * time.Minute,
				MaxConsecutiveFailures: 5,
				MinBackoff:             30 * time.Second,
				MaxBackoff:             300 * time.Second,
				PollInterval:           10 * time.Second,
				StaleAfter:             7 * 24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			MaxSizeMB:  5,
		},
	}
}
