package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusrank/focusrank/internal/reporter"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report [activity]",
	Short: "Show the top ranked resources of an activity",
	Long:  "Rank the stored scores of an activity (default: the configured startup activity)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		activity := ""
		if len(args) == 1 {
			activity = args[0]
		}

		repo, closeDB, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		rep := reporter.New(cfg, cliLogger(cfg, cmd.ErrOrStderr()), repo)
		report, err := rep.GenerateReport(cmd.Context(), activity)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}

		out, err := rep.Format(report, reportFormat)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format (text, json, yaml)")
	rootCmd.AddCommand(reportCmd)
}
