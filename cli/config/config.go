package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/rayjob/blobstore"
)

// Config represents a rayjob.yaml configuration file.
// Every value is optional. CLI flags override config values.
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	Wait      WaitConfig      `yaml:"wait"`
	Packages  PackagesConfig  `yaml:"packages"`
	Journal   JournalConfig   `yaml:"journal"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DashboardConfig locates the job dashboard.
type DashboardConfig struct {
	URL       string   `yaml:"url"`
	UserAgent string   `yaml:"user_agent"`
	Timeout   Duration `yaml:"timeout"`
}

// WaitConfig holds defaults for waiting on jobs.
type WaitConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// PackagesConfig selects where working-directory packages are uploaded.
type PackagesConfig struct {
	// Backend is "dashboard" (default) or "s3".
	Backend string             `yaml:"backend"`
	TempDir string             `yaml:"temp_dir"`
	S3      blobstore.S3Config `yaml:"s3"`
}

// JournalConfig selects where submission history is kept.
type JournalConfig struct {
	// Backend is "fs" (default), "s3" or "none".
	Backend string             `yaml:"backend"`
	Path    string             `yaml:"path"`
	S3      blobstore.S3Config `yaml:"s3"`
}

// AdapterConfig configures completion notifications.
type AdapterConfig struct {
	// Type is "webhook", "redis" or "nats". Empty disables notifications.
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
	// Channel is the redis channel or nats subject.
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig enables a Prometheus textfile written on exit.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Packages.Backend {
	case "", BackendDashboard:
	case BackendS3:
		if err := c.Packages.S3.Validate(); err != nil {
			return fmt.Errorf("packages.s3: %w", err)
		}
	default:
		return fmt.Errorf("packages.backend: unknown backend %q (must be dashboard or s3)", c.Packages.Backend)
	}

	switch c.Journal.Backend {
	case "", BackendFS, BackendNone:
	case BackendS3:
		if err := c.Journal.S3.Validate(); err != nil {
			return fmt.Errorf("journal.s3: %w", err)
		}
	default:
		return fmt.Errorf("journal.backend: unknown backend %q (must be fs, s3 or none)", c.Journal.Backend)
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis", "nats":
		if c.Adapter.URL == "" {
			return fmt.Errorf("adapter.url is required for %s", c.Adapter.Type)
		}
	default:
		return fmt.Errorf("adapter.type: unknown adapter %q (must be webhook, redis or nats)", c.Adapter.Type)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}

// Backend names.
const (
	BackendDashboard = "dashboard"
	BackendS3        = "s3"
	BackendFS        = "fs"
	BackendNone      = "none"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}
