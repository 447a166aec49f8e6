package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// learningProfileRecord 学习画像整体以 JSON 存一列
type learningProfileRecord struct {
	UserID    uuid.UUID                                  `gorm:"type:uuid;primaryKey"`
	Data      datatypes.JSONType[models.LearningProfile] `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (learningProfileRecord) TableName() string { return "learning_profiles" }

// GetProfile 不存在时返回 (nil, false, nil)
func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, bool, error) {
	var rec learningProfileRecord
	err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get learning profile: %w", err)
	}
	p := rec.Data.Data()
	return &p, true, nil
}

// SaveProfile 在同一事务中保存画像并写入新获得的成就；成就冲突时忽略
func (s *Store) SaveProfile(ctx context.Context, profile *models.LearningProfile, awards []models.UserAchievement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := learningProfileRecord{
			UserID:    profile.UserID,
			Data:      datatypes.NewJSONType(*profile),
			UpdatedAt: profile.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return fmt.Errorf("save learning profile: %w", err)
		}
		if len(awards) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&awards).Error; err != nil {
			return fmt.Errorf("create user achievements: %w", err)
		}
		return nil
	})
}

// UnearnedAchievements 用户尚未获得的有效成就
func (s *Store) UnearnedAchievements(ctx context.Context, userID uuid.UUID) ([]models.Achievement, error) {
	var out []models.Achievement
	earned := s.db.Model(&models.UserAchievement{}).Select("achievement_id").Where("user_id = ?", userID)
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id NOT IN (?)", earned).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("unearned achievements: %w", err)
	}
	return out, nil
}

func (s *Store) UserAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("user achievements: %w", err)
	}
	return out, nil
}

// SeedAchievements 按 id 幂等写入成就目录
func (s *Store) SeedAchievements(ctx context.Context, catalog []models.Achievement) error {
	if len(catalog) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "tier", "criteria", "status_points", "is_active"}),
	}).Create(&catalog).Error
}

// CandidateContent 指定技能领域、指定难度集合内的候选内容
func (s *Store) CandidateContent(ctx context.Context, skillAreas []string, levels []models.Level, limit int) ([]models.ContentAssessment, error) {
	q := s.db.WithContext(ctx).Model(&models.ContentAssessment{})
	if len(skillAreas) > 0 {
		q = q.Where("skill_area IN ?", skillAreas)
	}
	if len(levels) > 0 {
		q = q.Where("difficulty IN ?", levels)
	}
	var out []models.ContentAssessment
	if err := q.Order("learning_value DESC, id").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("candidate content: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertContentAssessments(ctx context.Context, items []models.ContentAssessment) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "url", "skill_area", "difficulty", "learning_value"}),
	}).Create(&items).Error
}
