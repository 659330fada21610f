package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Tracker configuration
	Tracker TrackerConfig `mapstructure:"tracker"`

	// Rankings configuration
	Rankings RankingsConfig `mapstructure:"rankings"`

	// Daemon configuration
	Daemon DaemonConfig `mapstructure:"daemon"`

	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// X11 integration configuration
	X11 X11Config `mapstructure:"x11"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Path to SQLite score store
}

// TrackerConfig holds event batching configuration
type TrackerConfig struct {
	FlushDelay time.Duration `mapstructure:"flush_delay"` // Delay between first enqueue and delivery
	Activity   string        `mapstructure:"activity"`    // Activity that is current at startup
}

// RankingsConfig holds ranking cache configuration
type RankingsConfig struct {
	Limit int `mapstructure:"limit"` // Resources kept per activity
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"` // Path to PID file for daemon management
}

// LogConfig holds logging configuration
type LogConfig struct {
	File    string `mapstructure:"file"`    // Log file used when running as a daemon
	Verbose bool   `mapstructure:"verbose"` // Enable debug logging
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string        `mapstructure:"textfile"` // Prometheus textfile path, empty disables export
	Interval time.Duration `mapstructure:"interval"` // How often the textfile is rewritten
}

// X11Config holds window-system integration configuration
type X11Config struct {
	Enabled bool `mapstructure:"enabled"`
}

// Limits enforced by Validate
const (
	MinFlushDelay = 100 * time.Millisecond
	MaxFlushDelay = time.Minute
	MaxRankLimit  = 100
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/focusrank/focusrank.db
		},
		Tracker: TrackerConfig{
			FlushDelay: time.Second,
			Activity:   "default",
		},
		Rankings: RankingsConfig{
			Limit: 10,
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/focusrank-%d.pid", os.Getuid()),
		},
		Log: LogConfig{
			File: fmt.Sprintf("/tmp/focusrank-%d.log", os.Getuid()),
		},
		Metrics: MetricsConfig{
			Textfile: "", // Disabled
			Interval: 15 * time.Second,
		},
		X11: X11Config{
			Enabled: true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.FlushDelay < MinFlushDelay {
		return fmt.Errorf("flush delay (%v) cannot be less than minimum (%v)",
			c.Tracker.FlushDelay, MinFlushDelay)
	}

	if c.Tracker.FlushDelay > MaxFlushDelay {
		return fmt.Errorf("flush delay (%v) cannot be greater than maximum (%v)",
			c.Tracker.FlushDelay, MaxFlushDelay)
	}

	if c.Tracker.Activity == "" {
		return fmt.Errorf("initial activity cannot be empty")
	}

	if c.Rankings.Limit < 1 || c.Rankings.Limit > MaxRankLimit {
		return fmt.Errorf("ranking limit must be between 1 and %d, got %d", MaxRankLimit, c.Rankings.Limit)
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	if c.Metrics.Textfile != "" && c.Metrics.Interval <= 0 {
		return fmt.Errorf("metrics interval must be positive, got %v", c.Metrics.Interval)
	}

	return nil
}

// SetFlushDelay sets the flush delay with validation
func (c *Config) SetFlushDelay(delay time.Duration) error {
	if delay < MinFlushDelay {
		return fmt.Errorf("flush delay cannot be less than %v", MinFlushDelay)
	}
	if delay > MaxFlushDelay {
		return fmt.Errorf("flush delay cannot be greater than %v", MaxFlushDelay)
	}
	c.Tracker.FlushDelay = delay
	return nil
}

// String renders the effective configuration as TOML
func (c *Config) String() string {
	doc := map[string]map[string]any{
		"database": {
			"path": c.Database.Path,
		},
		"tracker": {
			"flush_delay": c.Tracker.FlushDelay.String(),
			"activity":    c.Tracker.Activity,
		},
		"rankings": {
			"limit": c.Rankings.Limit,
		},
		"daemon": {
			"pid_file": c.Daemon.PIDFile,
		},
		"log": {
			"file":    c.Log.File,
			"verbose": c.Log.Verbose,
		},
		"metrics": {
			"textfile": c.Metrics.Textfile,
			"interval": c.Metrics.Interval.String(),
		},
		"x11": {
			"enabled": c.X11.Enabled,
		},
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Sprintf("invalid configuration: %v", err)
	}
	return buf.String()
}
