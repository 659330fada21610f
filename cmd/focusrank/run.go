package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/daemon"
	"github.com/focusrank/focusrank/internal/logging"
	"github.com/focusrank/focusrank/internal/service"
	"github.com/focusrank/focusrank/pkg/detector"
	"github.com/focusrank/focusrank/pkg/window"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker in the foreground",
	Long:  "Run the tracker attached to the terminal, logging to stderr, until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyFlushDelay(cmd, cfg); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, true, cmd.ErrOrStderr())
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracker as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyFlushDelay(cmd, cfg); err != nil {
			return err
		}

		if daemon.IsChild() {
			return serve(cmd.Context(), cfg, false, cmd.ErrOrStderr())
		}

		dm := daemon.New(cfg.Daemon.PIDFile)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}
		if running {
			return fmt.Errorf("daemon is already running (PID: %d)", pid)
		}

		pid, err = daemon.Spawn(childArgs(cmd))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Daemon started successfully (PID: %d)\n", pid)
		fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", cfg.Log.File)
		return nil
	},
}

// flushDelay is the --flush-delay flag value of run and start
var flushDelay time.Duration

func init() {
	for _, cmd := range []*cobra.Command{runCmd, startCmd} {
		cmd.Flags().DurationVar(&flushDelay, "flush-delay", 0,
			"How long events are batched before delivery (overrides tracker.flush_delay)")
		rootCmd.AddCommand(cmd)
	}
}

// applyFlushDelay overrides the configured flush delay when the flag is set.
func applyFlushDelay(cmd *cobra.Command, cfg *config.Config) error {
	if !cmd.Flags().Changed("flush-delay") {
		return nil
	}
	return cfg.SetFlushDelay(flushDelay)
}

// childArgs repeats the flags of cmd for the re-executed daemon.
func childArgs(cmd *cobra.Command) []string {
	args := []string{"start"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	if cmd.Flags().Changed("flush-delay") {
		args = append(args, "--flush-delay", flushDelay.String())
	}
	return args
}

// serve runs the service until SIGINT or SIGTERM.
func serve(ctx context.Context, cfg *config.Config, foreground bool, stderr io.Writer) error {
	logger, closeLog := logging.New(cfg.Log, foreground, stderr)
	defer closeLog()

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running && pid != os.Getpid() {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	var source window.Source
	if cfg.X11.Enabled {
		source, err = detector.New(logger)
		if err != nil {
			logger.Warn(ctx, "window source unavailable, only API events will be tracked", slog.Error(err))
			source = nil
		} else {
			logger.Info(ctx, "window source initialized", slog.F("display_server", source.DisplayServer()))
		}
	}

	if err := dm.WritePID(); err != nil {
		return err
	}
	defer func() { _ = dm.RemovePID() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting focusrank", slog.F("version", version), slog.F("foreground", foreground))
	logger.Debug(ctx, "configuration", slog.F("config", cfg.String()))

	svc := service.New(cfg, logger, service.Options{
		Store:  repo,
		Errors: repo,
		Source: source,
	})
	return svc.Run(ctx)
}
