package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusrank/focusrank/internal/daemon"
	"github.com/focusrank/focusrank/pkg/detector"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dm := daemon.New(cfg.Daemon.PIDFile)

		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}

		if !running {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Stopping daemon (PID: %d)...\n", pid)
		if err := dm.Stop(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped successfully")
		return nil
	},
}

var statusErrors int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status, recent errors and the active window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		dm := daemon.New(cfg.Daemon.PIDFile)

		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}

		if !running {
			fmt.Fprintln(out, "Status: Not running")
		} else {
			fmt.Fprintf(out, "Status: Running (PID: %d)\n", pid)
			fmt.Fprintf(out, "Flush Delay: %v\n", cfg.Tracker.FlushDelay)
			fmt.Fprintf(out, "Activity: %s\n", cfg.Tracker.Activity)
			fmt.Fprintf(out, "Database: %s\n", cfg.Database.Path)
		}

		if repo, closeDB, err := openRepository(cfg); err == nil {
			defer closeDB()
			if n, err := repo.CountScores(cmd.Context()); err == nil {
				fmt.Fprintf(out, "Stored Scores: %d\n", n)
			}
			if logs, err := repo.RecentErrors(statusErrors); err == nil && len(logs) > 0 {
				fmt.Fprintf(out, "\nRecent Errors:\n")
				for _, l := range logs {
					fmt.Fprintf(out, "  %s [%s] %s\n", l.Timestamp.Format("2006-01-02 15:04:05"), l.Source, l.ErrorMsg)
				}
			}
		}

		// Still show current window detection even when not running
		source, err := detector.New(cliLogger(cfg, cmd.ErrOrStderr()))
		if err != nil {
			fmt.Fprintf(out, "\nCould not detect current window: %v\n", err)
			return nil
		}
		defer source.Close()

		info, err := source.ActiveWindow()
		if err == nil && info != nil {
			fmt.Fprintf(out, "\nCurrent Window:\n")
			fmt.Fprintf(out, "  ID: %#x\n", info.ID)
			fmt.Fprintf(out, "  App: %s\n", info.AppName)
			fmt.Fprintf(out, "  Title: %s\n", info.Title)
			fmt.Fprintf(out, "  Resource: %s\n", info.URI)
			fmt.Fprintf(out, "  Display: %s\n", source.DisplayServer())
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusErrors, "errors", 5, "Number of recent errors to show")
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}
