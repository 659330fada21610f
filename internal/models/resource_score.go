package models

import (
	"time"
)

// ResourceScore is one cached usage score, maintained by the scoring
// collaborator and read back when an activity's ranking is populated.
type ResourceScore struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UsedActivity      string    `gorm:"not null;uniqueIndex:idx_score_key,priority:1;index:idx_activity_score,priority:1" json:"used_activity"`
	InitiatingAgent   string    `gorm:"not null;uniqueIndex:idx_score_key,priority:2" json:"initiating_agent"`
	TargettedResource string    `gorm:"not null;uniqueIndex:idx_score_key,priority:3" json:"targetted_resource"`
	CachedScore       float64   `gorm:"not null;default:0;index:idx_activity_score,priority:2" json:"cached_score"`
	LastUpdate        time.Time `gorm:"not null" json:"last_update"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm's pluralization.
func (ResourceScore) TableName() string {
	return "resource_score_cache"
}

// RankedResource is a scored resource as reported to users.
type RankedResource struct {
	URI   string  `json:"uri" yaml:"uri"`
	Score float64 `json:"score" yaml:"score"`
}

// RankingReport lists the top resources of one activity.
type RankingReport struct {
	Activity    string           `json:"activity" yaml:"activity"`
	Limit       int              `json:"limit" yaml:"limit"`
	Threshold   float64          `json:"threshold" yaml:"threshold"`
	Resources   []RankedResource `json:"resources" yaml:"resources"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
}
