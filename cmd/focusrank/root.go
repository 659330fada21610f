package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/database"
	"github.com/focusrank/focusrank/internal/logging"
)

var (
	// configPath is the --config flag value
	configPath string
	// verbose is the --verbose flag value
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "focusrank",
	Short: "focusrank - track resource usage and rank what matters now",
	Long: `focusrank watches which windows and documents you work with, turns the raw
window-system notifications into a consistent stream of resource events, and keeps
a ranked list of the most relevant resources for each activity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: ~/.config/focusrank/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

// loadConfig resolves the configuration from file, environment and flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	return cfg, nil
}

// cliLogger logs to stderr for one-shot commands.
func cliLogger(cfg *config.Config, stderr io.Writer) slog.Logger {
	logger, _ := logging.New(cfg.Log, true, stderr)
	return logger
}

func openRepository(cfg *config.Config) (*database.Repository, func(), error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Initialize(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return database.NewRepository(db), func() { _ = db.Close() }, nil
}
