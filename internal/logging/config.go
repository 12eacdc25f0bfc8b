package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/t766/control/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFromConfig creates a logger from configuration
func NewFromConfig(cfg config.LoggingConfig) (*Logger, error) {
	// Parse level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Configure output writer
	var output io.Writer
	switch cfg.OutputPath {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// File output - ensure parent directory exists
		logDir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		// Rotated file keeps one previous generation next to the live log
		output = &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    maxSizeMB(cfg.MaxSizeMB),
			MaxBackups: 1,
			LocalTime:  true,
		}
	}

	// Configure format
	if cfg.Format == "console" || cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: getTimeFormat(cfg.TimeFormat),
			NoColor:    cfg.OutputPath != "stdout" && cfg.OutputPath != "stderr" && cfg.OutputPath != "",
		}
	}

	return NewWithWriter(output, level), nil
}

func maxSizeMB(size int) int {
	if size <= 0 {
		return 5
	}
	return size
}

// getTimeFormat converts string to time format
func getTimeFormat(format string) string {
	switch format {
	case "RFC3339":
		return time.RFC3339
	case "Unix":
		return time.UnixDate
	case "Kitchen":
		return time.Kitchen
	default:
		return time.DateTime
	}
}
