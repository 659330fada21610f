package database

import (
	"context"
	"time"

	"github.com/focusrank/focusrank/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes the score cache and the error log
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// TopScores returns up to limit resources with a positive cached score for
// activity, best first. A resource scored by several agents counts with its
// best score.
func (r *Repository) TopScores(ctx context.Context, activity string, limit int) ([]models.RankedResource, error) {
	var ranked []models.RankedResource

	result := r.db.WithContext(ctx).
		Model(&models.ResourceScore{}).
		Select("targetted_resource AS uri, MAX(cached_score) AS score").
		Where("used_activity = ? AND cached_score > 0", activity).
		Group("targetted_resource").
		Order("score DESC, uri ASC").
		Limit(limit).
		Scan(&ranked)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query top scores")
	}

	return ranked, nil
}

// ScoresFor returns the best cached score of each of uris in activity.
// Resources without a score are absent from the map.
func (r *Repository) ScoresFor(ctx context.Context, activity string, uris []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(uris))
	if len(uris) == 0 {
		return scores, nil
	}

	var ranked []models.RankedResource
	result := r.db.WithContext(ctx).
		Model(&models.ResourceScore{}).
		Select("targetted_resource AS uri, MAX(cached_score) AS score").
		Where("used_activity = ? AND targetted_resource IN ?", activity, uris).
		Group("targetted_resource").
		Scan(&ranked)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query resource scores")
	}

	for _, res := range ranked {
		scores[res.URI] = res.Score
	}
	return scores, nil
}

// UpsertScore stores the score of one (activity, agent, resource) triple,
// replacing the previous value.
func (r *Repository) UpsertScore(ctx context.Context, score *models.ResourceScore) error {
	if score.LastUpdate.IsZero() {
		score.LastUpdate = time.Now()
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "used_activity"},
			{Name: "initiating_agent"},
			{Name: "targetted_resource"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"cached_score", "last_update", "updated_at"}),
	}).Create(score)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to upsert resource score")
	}
	return nil
}

// GetScore retrieves one stored score
func (r *Repository) GetScore(ctx context.Context, activity, agent, uri string) (*models.ResourceScore, error) {
	var score models.ResourceScore
	result := r.db.WithContext(ctx).
		Where("used_activity = ? AND initiating_agent = ? AND targetted_resource = ?", activity, agent, uri).
		First(&score)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get resource score")
	}
	return &score, nil
}

// Activities lists every activity with at least one stored score
func (r *Repository) Activities(ctx context.Context) ([]string, error) {
	var activities []string
	result := r.db.WithContext(ctx).
		Model(&models.ResourceScore{}).
		Distinct("used_activity").
		Order("used_activity ASC").
		Pluck("used_activity", &activities)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to list activities")
	}
	return activities, nil
}

// CountScores returns the number of stored scores
func (r *Repository) CountScores(ctx context.Context) (int64, error) {
	var n int64
	result := r.db.WithContext(ctx).Model(&models.ResourceScore{}).Count(&n)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count resource scores")
	}
	return n, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecentErrors returns the newest error logs, newest first
func (r *Repository) RecentErrors(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// Clear removes all cached scores from the database
func (r *Repository) Clear() error {
	result := r.db.Exec("DELETE FROM resource_score_cache")
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear resource scores")
	}
	return nil
}
