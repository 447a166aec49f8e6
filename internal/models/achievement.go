package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CriterionLearningStreak  = "learning_streak"
	CriterionContentConsumed = "content_consumed"
	CriterionSkillLevel      = "skill_level"
)

type Criteria struct {
	Type      string `json:"type"`
	Threshold int    `json:"threshold"`
	SkillArea string `json:"skill_area,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

// Achievement 成就目录条目
type Achievement struct {
	ID           string                       `json:"id" gorm:"primaryKey"`
	Category     string                       `json:"category"`
	Tier         string                       `json:"tier"`
	Criteria     datatypes.JSONType[Criteria] `json:"criteria"`
	StatusPoints int                          `json:"status_points"`
	IsActive     bool                         `json:"is_active"`
}

// UserAchievement 每个 (user, achievement) 仅有一条
type UserAchievement struct {
	ID            uuid.UUID                          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID                          `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_user_achievement"`
	AchievementID string                             `json:"achievement_id" gorm:"uniqueIndex:idx_user_achievement"`
	EarnedAt      time.Time                          `json:"earned_at"`
	EarnedData    datatypes.JSONType[map[string]any] `json:"earned_data"`
}
