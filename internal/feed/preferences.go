package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// GetPreferences 返回已填充默认值的偏好
func (s *Service) GetPreferences(ctx context.Context, userID uuid.UUID) (models.PreferenceProfile, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return models.PreferenceProfile{}, err
	}
	return Effective(prefs), nil
}

// UpdatePreferences 校验后整体替换，用户不存在时创建
func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs models.PreferenceProfile) (models.PreferenceProfile, error) {
	if err := prefs.Validate(); err != nil {
		return models.PreferenceProfile{}, err
	}
	prefs.Version = models.PreferenceProfileVersion
	u, err := s.store.SavePreferences(ctx, userID, prefs)
	if err != nil {
		return models.PreferenceProfile{}, fmt.Errorf("update preferences: %w", err)
	}
	s.Invalidate(ctx, userID)
	return Effective(u.Preferences.Data()), nil
}

// Effective 把未设置的字段补成默认值，便于客户端展示
func Effective(p models.PreferenceProfile) models.PreferenceProfile {
	out := models.PreferenceProfile{
		Version:            models.PreferenceProfileVersion,
		ContentTypeWeights: make(map[string]float64, len(models.ContentTypeKeys)),
		CategoryWeights:    make(map[string]float64, len(p.CategoryWeights)),
	}
	for _, k := range models.ContentTypeKeys {
		out.ContentTypeWeights[k] = p.ContentTypeWeight(k)
	}
	for k, w := range p.CategoryWeights {
		out.CategoryWeights[k] = w
	}
	recency, popularity, diversity := p.RecencyWeight(), p.PopularityWeight(), p.DiversityImportance()
	out.FeedBehavior = models.FeedBehavior{
		RecencyWeight:       &recency,
		PopularityWeight:    &popularity,
		DiversityImportance: &diversity,
	}
	return out
}
