package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if !clearYes {
			// Prompt for confirmation
			fmt.Fprint(cmd.OutOrStdout(), "This will delete all stored scores. Are you sure? (yes/no): ")
			response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "yes" && response != "y" {
				fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled")
				return nil
			}
		}

		repo, closeDB, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repo.Clear(); err != nil {
			return fmt.Errorf("failed to clear database: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Database cleared successfully")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
