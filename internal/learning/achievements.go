package learning

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
)

// Evaluate 对更新后的画像逐条检查未获得的成就，返回新的授予记录
func Evaluate(p *models.LearningProfile, unearned []models.Achievement, now time.Time) []models.UserAchievement {
	var awards []models.UserAchievement
	for _, a := range unearned {
		if !a.IsActive {
			continue
		}
		data, ok := satisfied(a.Criteria.Data(), p)
		if !ok {
			continue
		}
		awards = append(awards, models.UserAchievement{
			ID:            uuid.New(),
			UserID:        p.UserID,
			AchievementID: a.ID,
			EarnedAt:      now,
			EarnedData:    datatypes.NewJSONType(data),
		})
	}
	return awards
}

func satisfied(c models.Criteria, p *models.LearningProfile) (map[string]any, bool) {
	switch c.Type {
	case models.CriterionLearningStreak:
		keys := make([]string, 0, len(p.Streaks))
		for k := range p.Streaks {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := p.Streaks[k]; s != nil && s.Current >= c.Threshold {
				return map[string]any{"streak": k, "current": s.Current}, true
			}
		}

	case models.CriterionContentConsumed:
		if n := p.Metrics.TotalContentConsumed; n >= c.Threshold {
			return map[string]any{"content_consumed": n}, true
		}

	case models.CriterionSkillLevel:
		areas := make([]string, 0, len(p.Skills))
		for area := range p.Skills {
			if c.SkillArea == "" || c.SkillArea == area {
				areas = append(areas, area)
			}
		}
		sort.Strings(areas)
		for _, area := range areas {
			if s := p.Skills[area]; s != nil && s.Level.Number() >= models.LevelExpert.Number() {
				return map[string]any{"skill_area": area, "level": string(s.Level)}, true
			}
		}
	}
	return nil, false
}

// Catalog 把规则表中的成就转换为目录条目
func Catalog(r *rules.Rules) []models.Achievement {
	out := make([]models.Achievement, 0, len(r.Achievements))
	for _, a := range r.Achievements {
		out = append(out, models.Achievement{
			ID:       a.ID,
			Category: a.Category,
			Tier:     a.Tier,
			Criteria: datatypes.NewJSONType(models.Criteria{
				Type:      a.Criteria.Type,
				Threshold: a.Criteria.Threshold,
				SkillArea: a.Criteria.SkillArea,
				Timeframe: a.Criteria.Timeframe,
			}),
			StatusPoints: a.StatusPoints,
			IsActive:     true,
		})
	}
	return out
}
