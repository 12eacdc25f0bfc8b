package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// EnsureDirectories ensures the parent directories of all agent state files exist
func (c *AgentConfig) EnsureDirectories() error {
	files := []string{c.StateFile, c.CheckinFile, c.CheckinOldFile}

	for _, file := range files {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return err
		}
	}

	return nil
}

// GetServerAddress returns the HTTP server listen address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GetTimezone returns the collector timezone used for timestamps and interval labels.
// Returns time.Local if not configured or invalid.
// Supports formats:
//   - IANA timezone names: "Asia/Tokyo", "America/New_York", "UTC"
//   - Offset format: "+09:00", "-05:00", "+00:00"
func (c *StorageConfig) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}

	loc, err := parseTimezone(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func parseTimezone(name string) (*time.Location, error) {
	// Try parsing as IANA timezone name first
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}

	return parseOffsetTimezone(name)
}

// parseOffsetTimezone parses timezone offset format like "+09:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	matches := offsetPattern.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid offset format: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}

	hours, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid hours: %s", matches[2])
	}

	minutes, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("invalid minutes: %s", matches[3])
	}

	offsetSeconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(offset, offsetSeconds), nil
}

// BucketWidth returns the display interval width
func (c *StorageConfig) BucketWidth() time.Duration {
	return time.Duration(c.BucketMinutes) * time.Minute
}
