package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FOCUSRANK_TRACKER_FLUSH_DELAY.
const EnvPrefix = "FOCUSRANK"

const defaultConfigDir = ".config/focusrank"

// DefaultPath returns ~/.config/focusrank/config.toml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDir, "config.toml"), nil
}

// Load builds the configuration from defaults, an optional TOML file and
// the environment, in increasing order of precedence. An empty path means
// the default location, which may be missing. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// New loads the configuration from the default locations
func New() (*Config, error) {
	return Load("")
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("tracker.flush_delay", d.Tracker.FlushDelay)
	v.SetDefault("tracker.activity", d.Tracker.Activity)
	v.SetDefault("rankings.limit", d.Rankings.Limit)
	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.verbose", d.Log.Verbose)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("metrics.interval", d.Metrics.Interval)
	v.SetDefault("x11.enabled", d.X11.Enabled)
}
