package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/progression"
)

const (
	DefaultRecommendations = 10
	MaxRecommendations     = 50

	recentAssessment = 7 * 24 * time.Hour
	candidateFactor  = 5
)

// GetRecommendations 按技能匹配度与学习价值排序推荐内容。
// 画像不存在时按 beginner 处理，不返回错误。
func (s *Service) GetRecommendations(ctx context.Context, userID uuid.UUID, skillArea string, limit int) ([]models.Recommendation, error) {
	if limit == 0 {
		limit = DefaultRecommendations
	}
	if limit < 0 || limit > MaxRecommendations {
		return nil, apperr.NewValidation([]apperr.FieldError{{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxRecommendations)}})
	}

	now := s.now()
	profile, err := s.loadOrCreate(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var areas []string
	if skillArea != "" {
		areas = []string{skillArea}
	}
	levels := candidateLevels(profile, areas)

	candidates, err := s.store.CandidateContent(ctx, areas, levels, limit*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("load candidate content: %w", err)
	}

	recs := make([]models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		skill := profile.Skills[c.SkillArea]
		optimal := progression.OptimalLevel(skill, profile.DifficultyPreference)
		if abs(c.Difficulty.Number()-optimal.Number()) > 1 {
			continue
		}
		rel := Relevance(profile, c, now)
		recs = append(recs, models.Recommendation{
			Content:     c,
			Relevance:   rel,
			Score:       Blend(rel, c.LearningValue),
			TargetLevel: optimal,
			MatchesGoal: profile.HasActiveGoal(c.SkillArea),
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Content.ID < recs[j].Content.ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// candidateLevels 各技能领域最优难度 ±1 的并集；未指定领域时覆盖画像中所有领域及 beginner 起点
func candidateLevels(p *models.LearningProfile, areas []string) []models.Level {
	if len(areas) == 0 {
		areas = append(areas, "")
		for area := range p.Skills {
			areas = append(areas, area)
		}
	}
	seen := map[int]bool{}
	for _, area := range areas {
		n := progression.OptimalLevel(p.Skills[area], p.DifficultyPreference).Number()
		for d := -1; d <= 1; d++ {
			if n+d >= 1 && n+d <= len(models.Levels) {
				seen[n+d] = true
			}
		}
	}
	levels := make([]models.Level, 0, len(seen))
	for n := 1; n <= len(models.Levels); n++ {
		if seen[n] {
			levels = append(levels, models.LevelFromNumber(n))
		}
	}
	return levels
}

// Relevance 0.5 基础分 + 难度接近度 + 目标匹配 + 近期评估，限制在 [0,1]
func Relevance(p *models.LearningProfile, c models.ContentAssessment, now time.Time) float64 {
	current := models.LevelBeginner
	skill := p.Skills[c.SkillArea]
	if skill != nil {
		current = skill.Level
	}

	rel := 0.5
	dist := abs(current.Number() - c.Difficulty.Number())
	rel += math.Max(0, 0.3-0.1*float64(dist))
	if p.HasActiveGoal(c.SkillArea) {
		rel += 0.2
	}
	if skill != nil && now.Sub(skill.LastAssessedAt) <= recentAssessment {
		rel += 0.1
	}
	return math.Max(0, math.Min(1, rel))
}

// Blend 最终排序分：0.6·相关度 + 0.4·学习价值/10
func Blend(relevance, learningValue float64) float64 {
	return 0.6*relevance + 0.4*(learningValue/10)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MaxContentBatch 单次写入推荐候选的上限
const MaxContentBatch = 200

// AddContent 写入或更新推荐候选内容，按 item_ref 去重
func (s *Service) AddContent(ctx context.Context, items []models.ContentAssessment) error {
	if len(items) == 0 || len(items) > MaxContentBatch {
		return apperr.NewValidation([]apperr.FieldError{{Field: "items", Message: fmt.Sprintf("must contain between 1 and %d entries", MaxContentBatch)}})
	}
	var errs []apperr.FieldError
	for i := range items {
		it := &items[i]
		it.ItemRef = strings.TrimSpace(it.ItemRef)
		it.SkillArea = strings.TrimSpace(it.SkillArea)
		prefix := fmt.Sprintf("items[%d].", i)
		if it.ItemRef == "" {
			errs = append(errs, apperr.FieldError{Field: prefix + "item_ref", Message: "is required"})
		}
		if it.SkillArea == "" {
			errs = append(errs, apperr.FieldError{Field: prefix + "skill_area", Message: "is required"})
		}
		if !it.Difficulty.Valid() {
			errs = append(errs, apperr.FieldError{Field: prefix + "difficulty", Message: "must be a known level"})
		}
		if it.LearningValue < 0 || it.LearningValue > 10 {
			errs = append(errs, apperr.FieldError{Field: prefix + "learning_value", Message: "must be within [0,10]"})
		}
	}
	if err := apperr.NewValidation(errs); err != nil {
		return err
	}
	if err := s.store.UpsertContentAssessments(ctx, items); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	s.log.Info("content catalog updated", "count", len(items))
	return nil
}
