package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/focusrank/focusrank/internal/database"
	"github.com/focusrank/focusrank/internal/models"
)

func newRepository(t *testing.T) *database.Repository {
	t.Helper()

	db, err := database.Connect(filepath.Join(t.TempDir(), "scores", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Initialize())

	return database.NewRepository(db)
}

func seed(t *testing.T, repo *database.Repository, activity, agent, uri string, score float64) {
	t.Helper()
	require.NoError(t, repo.UpsertScore(context.Background(), &models.ResourceScore{
		UsedActivity:      activity,
		InitiatingAgent:   agent,
		TargettedResource: uri,
		CachedScore:       score,
	}))
}

func TestTopScores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepository(t)

	seed(t, repo, "work", "editor", "file:///a", 3)
	seed(t, repo, "work", "viewer", "file:///a", 5)
	seed(t, repo, "work", "editor", "file:///b", 4)
	seed(t, repo, "work", "editor", "file:///c", 1)
	seed(t, repo, "work", "editor", "file:///zero", 0)
	seed(t, repo, "home", "editor", "file:///h", 9)

	top, err := repo.TopScores(ctx, "work", 2)
	require.NoError(t, err)
	assert.Equal(t, []models.RankedResource{
		{URI: "file:///a", Score: 5},
		{URI: "file:///b", Score: 4},
	}, top)

	all, err := repo.TopScores(ctx, "work", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "zero scores are not ranked")

	none, err := repo.TopScores(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertReplacesScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepository(t)

	seed(t, repo, "work", "editor", "file:///a", 1)
	seed(t, repo, "work", "editor", "file:///a", 7)

	n, err := repo.CountScores(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	score, err := repo.GetScore(ctx, "work", "editor", "file:///a")
	require.NoError(t, err)
	assert.Equal(t, 7.0, score.CachedScore)
	assert.False(t, score.LastUpdate.IsZero())

	_, err = repo.GetScore(ctx, "work", "editor", "file:///missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestScoresFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepository(t)

	seed(t, repo, "work", "editor", "file:///a", 2)
	seed(t, repo, "work", "viewer", "file:///a", 6)
	seed(t, repo, "work", "editor", "file:///b", 1)
	seed(t, repo, "home", "editor", "file:///c", 3)

	scores, err := repo.ScoresFor(ctx, "work", []string{"file:///a", "file:///b", "file:///c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"file:///a": 6, "file:///b": 1}, scores)

	empty, err := repo.ScoresFor(ctx, "work", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestActivitiesAndClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepository(t)

	seed(t, repo, "work", "editor", "file:///a", 2)
	seed(t, repo, "home", "editor", "file:///b", 1)
	seed(t, repo, "work", "editor", "file:///c", 1)

	activities, err := repo.Activities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "work"}, activities)

	require.NoError(t, repo.Clear())
	n, err := repo.CountScores(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestErrorLogs(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	base := time.Now()

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Source:    "x11",
			ErrorMsg:  msg,
		}))
	}

	logs, err := repo.RecentErrors(2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].ErrorMsg)
	assert.Equal(t, "second", logs[1].ErrorMsg)
	assert.Equal(t, "x11", logs[0].Source)
}

func TestTopScoresHonoursContext(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	seed(t, repo, "work", "editor", "file:///a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.TopScores(ctx, "work", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
