package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/focusrank/focusrank/internal/models"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Read and write cached resource scores",
	Long: `Scores are computed by an external scoring agent. These commands store and
inspect the cached values that rankings are seeded from.`,
}

var scoreSetCmd = &cobra.Command{
	Use:   "set <activity> <agent> <uri> <score>",
	Short: "Store the score of a resource",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[3])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, closeDB, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repo.UpsertScore(cmd.Context(), &models.ResourceScore{
			UsedActivity:      args[0],
			InitiatingAgent:   args[1],
			TargettedResource: args[2],
			CachedScore:       score,
			LastUpdate:        time.Now(),
		}); err != nil {
			return fmt.Errorf("failed to store score: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s = %.3f (activity %s, agent %s)\n", args[2], score, args[0], args[1])
		return nil
	},
}

var scoreGetCmd = &cobra.Command{
	Use:   "get <activity> <agent> <uri>",
	Short: "Show the stored score of a resource",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, closeDB, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		score, err := repo.GetScore(cmd.Context(), args[0], args[1], args[2])
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no score stored for %s (activity %s, agent %s)", args[2], args[0], args[1])
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%.3f (updated %s)\n", score.CachedScore, score.LastUpdate.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List activities with stored scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, closeDB, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		activities, err := repo.Activities(cmd.Context())
		if err != nil {
			return err
		}

		if len(activities) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored scores")
			return nil
		}
		for _, a := range activities {
			marker := " "
			if a == cfg.Tracker.Activity {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, a)
		}
		return nil
	},
}

func init() {
	scoreCmd.AddCommand(scoreSetCmd)
	scoreCmd.AddCommand(scoreGetCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(activitiesCmd)
}

// parseScore accepts finite, non-negative scores.
func parseScore(s string) (float64, error) {
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	if score < 0 || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("invalid score %q: must be a finite number >= 0", s)
	}
	return score, nil
}
