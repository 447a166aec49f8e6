package learning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/progression"
)

var streakMilestones = []int{3, 7, 14, 30, 60, 100}

var messages = map[string][]string{
	"start": {
		"Every expert was once a beginner. Start with one small step today.",
		"Pick one topic and spend ten minutes on it. That's how streaks begin.",
	},
	"streak": {
		"You're on a roll. Keep the streak alive!",
		"Consistency compounds. Another day, another step forward.",
		"Your streak shows real commitment. Don't break the chain.",
	},
	"strength": {
		"Your strengths are growing. Try teaching what you know to lock it in.",
		"You've built solid skills. Time to stretch into something harder.",
	},
	"steady": {
		"Progress is progress, however small. Keep going.",
		"Learning is a marathon. You're moving in the right direction.",
		"Small steps every day add up to big results.",
	},
}

// GetProgressInsights 画像的汇总视图。画像不存在时返回零值视图。
func (s *Service) GetProgressInsights(ctx context.Context, userID uuid.UUID) (*models.ProgressInsights, error) {
	profile, err := s.loadOrCreate(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("progress insights: %w", err)
	}
	today := s.now().UTC().Format(progression.DateLayout)

	strengths, gaps := progression.Classify(profile.Skills)
	group := messageGroup(profile)
	return &models.ProgressInsights{
		OverallScore:        OverallScore(profile),
		CurrentLevel:        CurrentLevel(profile),
		SkillGaps:           gaps,
		Strengths:           strengths,
		RecommendedActions:  recommendedActions(profile, gaps, today),
		NextMilestones:      nextMilestones(profile),
		MotivationalMessage: messages[group][s.intn(len(messages[group]))],
	}, nil
}

// OverallScore 各技能进度（等级序号×1000+经验，满分 5000）的平均百分比
func OverallScore(p *models.LearningProfile) float64 {
	if len(p.Skills) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.Skills {
		progress := float64((s.Level.Number()-1)*progression.LevelUpThreshold + s.Experience)
		sum += math.Min(100, progress/5000*100)
	}
	return math.Round(sum/float64(len(p.Skills))*10) / 10
}

// CurrentLevel 平均等级四舍五入
func CurrentLevel(p *models.LearningProfile) models.Level {
	if len(p.Skills) == 0 {
		return models.LevelBeginner
	}
	var sum int
	for _, s := range p.Skills {
		sum += s.Level.Number()
	}
	return models.LevelFromNumber(int(math.Round(float64(sum) / float64(len(p.Skills)))))
}

func recommendedActions(p *models.LearningProfile, gaps []string, today string) []string {
	actions := []string{}
	for _, g := range gaps {
		actions = append(actions, fmt.Sprintf("Practice %s with beginner-friendly material to build confidence", g))
	}

	overall := p.Streaks[models.StreakOverall]
	switch {
	case overall == nil:
		actions = append(actions, "Track your first learning activity to start a streak")
	case overall.LastActivityDate != today:
		actions = append(actions, "Do a short activity today to keep your streak going")
	}

	if !hasActiveGoals(p) {
		actions = append(actions, "Set a learning goal for the skill you care about most")
	}
	if p.Metrics.TotalActivities >= 5 && p.Metrics.ApplicationRate < 0.2 {
		actions = append(actions, "Apply something you learned to a real project")
	}
	return actions
}

func nextMilestones(p *models.LearningProfile) []string {
	milestones := []string{}

	areas := make([]string, 0, len(p.Skills))
	for area := range p.Skills {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	for _, area := range areas {
		s := p.Skills[area]
		if s.Level == models.LevelMaster {
			continue
		}
		remaining := progression.LevelUpThreshold - s.Experience
		if remaining < 0 {
			remaining = 0
		}
		milestones = append(milestones, fmt.Sprintf("Reach %s in %s (%d XP to go)", s.Level.Next(), area, remaining))
	}

	current := 0
	if o := p.Streaks[models.StreakOverall]; o != nil {
		current = o.Current
	}
	for _, m := range streakMilestones {
		if m > current {
			milestones = append(milestones, fmt.Sprintf("Reach a %d-day learning streak", m))
			break
		}
	}
	return milestones
}

// messageGroup 根据画像状态选择激励语分组
func messageGroup(p *models.LearningProfile) string {
	if p.Metrics.TotalActivities == 0 {
		return "start"
	}
	if o := p.Streaks[models.StreakOverall]; o != nil && o.Current >= 3 {
		return "streak"
	}
	if len(p.Strengths) > 0 {
		return "strength"
	}
	return "steady"
}

func hasActiveGoals(p *models.LearningProfile) bool {
	for _, g := range p.Goals {
		if g.Active {
			return true
		}
	}
	return false
}
