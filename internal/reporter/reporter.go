package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/rankings"
)

// Reporter handles report generation
type Reporter struct {
	config *config.Config
	logger slog.Logger
	source rankings.ScoreSource
}

// New creates a new reporter
func New(cfg *config.Config, logger slog.Logger, source rankings.ScoreSource) *Reporter {
	return &Reporter{
		config: cfg,
		logger: logger,
		source: source,
	}
}

// GenerateReport ranks the stored scores of activity. An empty activity
// means the configured startup activity.
func (r *Reporter) GenerateReport(ctx context.Context, activity string) (*models.RankingReport, error) {
	if activity == "" {
		activity = r.config.Tracker.Activity
	}

	// Same insert and truncation rules as the daemon uses.
	cache := rankings.New(r.logger, r.source, rankings.WithLimit(r.config.Rankings.Limit))
	defer cache.Close()

	if err := cache.Populate(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}

	results := cache.Results(activity)
	resources := make([]models.RankedResource, len(results))
	for i, res := range results {
		resources[i] = models.RankedResource{URI: res.URI, Score: res.Score}
	}

	return &models.RankingReport{
		Activity:    activity,
		Limit:       cache.Limit(),
		Threshold:   cache.Threshold(activity),
		Resources:   resources,
		GeneratedAt: time.Now(),
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.RankingReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Top Resources - %s\n", report.Activity)
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Showing %d of at most %d (threshold %.3f)\n\n", len(report.Resources), report.Limit, report.Threshold)

	if len(report.Resources) == 0 {
		b.WriteString("No scored resources for this activity.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%4s  %-60s %10s\n", "#", "Resource", "Score")
	b.WriteString("--------------------------------------------------------------------------------\n")

	for i, res := range report.Resources {
		fmt.Fprintf(&b, "%4d  %-60s %10.3f\n", i+1, truncate(res.URI, 60), res.Score)
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.RankingReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// FormatReportYAML formats the report as YAML
func (r *Reporter) FormatReportYAML(report *models.RankingReport) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return string(data), nil
}

// Format renders the report in one of "text", "json" or "yaml"
func (r *Reporter) Format(report *models.RankingReport, format string) (string, error) {
	switch format {
	case "", "text":
		return r.FormatReportText(report), nil
	case "json":
		return r.FormatReportJSON(report)
	case "yaml", "yml":
		return r.FormatReportYAML(report)
	default:
		return "", fmt.Errorf("invalid format: %s (valid: text, json, yaml)", format)
	}
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
