package reporter_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/database"
	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/reporter"
)

func newReporter(t *testing.T, limit int, scores map[string]float64) *reporter.Reporter {
	t.Helper()

	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Initialize())

	repo := database.NewRepository(db)
	for uri, score := range scores {
		require.NoError(t, repo.UpsertScore(context.Background(), &models.ResourceScore{
			UsedActivity:      "work",
			InitiatingAgent:   "editor",
			TargettedResource: uri,
			CachedScore:       score,
		}))
	}

	cfg := config.Default()
	cfg.Tracker.Activity = "work"
	cfg.Rankings.Limit = limit
	return reporter.New(cfg, slogtest.Make(t, nil), repo)
}

func TestGenerateReport(t *testing.T) {
	t.Parallel()

	r := newReporter(t, 2, map[string]float64{
		"file:///a": 1,
		"file:///b": 3,
		"file:///c": 2,
	})

	report, err := r.GenerateReport(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "work", report.Activity)
	assert.Equal(t, 2, report.Limit)
	assert.Equal(t, 2.0, report.Threshold)
	assert.Equal(t, []models.RankedResource{
		{URI: "file:///b", Score: 3},
		{URI: "file:///c", Score: 2},
	}, report.Resources)
}

func TestFormats(t *testing.T) {
	t.Parallel()

	r := newReporter(t, 10, map[string]float64{"file:///a": 1.5})
	report, err := r.GenerateReport(context.Background(), "work")
	require.NoError(t, err)

	text, err := r.Format(report, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "Top Resources - work")
	assert.Contains(t, text, "file:///a")
	assert.Contains(t, text, "1.500")

	out, err := r.Format(report, "json")
	require.NoError(t, err)
	var fromJSON models.RankingReport
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))
	assert.Equal(t, report.Resources, fromJSON.Resources)

	out, err = r.Format(report, "yaml")
	require.NoError(t, err)
	var fromYAML models.RankingReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, "work", fromYAML.Activity)

	_, err = r.Format(report, "xml")
	require.ErrorContains(t, err, "invalid format")
}

func TestEmptyReport(t *testing.T) {
	t.Parallel()

	r := newReporter(t, 10, nil)
	report, err := r.GenerateReport(context.Background(), "idle")
	require.NoError(t, err)
	assert.Empty(t, report.Resources)

	text := r.FormatReportText(report)
	assert.True(t, strings.Contains(text, "No scored resources"))
}

func TestReportOrdersTiesByURI(t *testing.T) {
	t.Parallel()

	r := newReporter(t, 10, map[string]float64{
		"file:///c": 2,
		"file:///a": 2,
		"file:///b": 2,
		"file:///d": 4,
	})

	report, err := r.GenerateReport(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, []models.RankedResource{
		{URI: "file:///d", Score: 4},
		{URI: "file:///a", Score: 2},
		{URI: "file:///b", Score: 2},
		{URI: "file:///c", Score: 2},
	}, report.Resources)
}
