package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Segment.MinDurationSeconds < 0 {
		return errors.New("segment.min_duration_seconds must be >= 0")
	}
	if c.Embedding.Dims <= 0 {
		return errors.New("embedding.dims must be positive")
	}
	if c.Catalog.GCSPrefix != "" && !strings.HasPrefix(c.Catalog.GCSPrefix, "gs://") {
		return fmt.Errorf("catalog.gcs_prefix %q must start with gs://", c.Catalog.GCSPrefix)
	}
	if c.Boundary.RequestsPerSecond < 0 || c.Embedding.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must be >= 0")
	}
	if c.Queue.Subject == c.Queue.DLQSubject {
		return errors.New("queue.dlq_subject must differ from queue.subject")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
