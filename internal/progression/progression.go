// Package progression 技能成长状态机：经验、等级、连续天数与画像指标。
// 纯函数实现，不做 I/O，调用方负责加载与保存画像。
package progression

import (
	"math"
	"sort"
	"time"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

const (
	LevelUpThreshold = 1000
	MaxHistory       = 10

	InitialConfidence = 50.0
	ConfidenceStep    = 2.0

	StrengthConfidence = 80.0
	GapConfidence      = 60.0

	DateLayout = "2006-01-02"
)

var experienceByDifficulty = map[models.Level]int{
	models.LevelBeginner:     5,
	models.LevelIntermediate: 10,
	models.LevelAdvanced:     20,
	models.LevelExpert:       30,
}

// ExperienceGain 难度未指定或未知时为 10
func ExperienceGain(difficulty models.Level) int {
	if xp, ok := experienceByDifficulty[difficulty]; ok {
		return xp
	}
	return 10
}

// Result 一次活动对画像造成的变化
type Result struct {
	SkillArea string
	Gained    int
	LeveledUp bool
	Level     models.Level
}

// Apply 把一次活动应用到画像上（原地修改）。
// 顺序：技能经验 → 连续天数 → 指标 → 强弱项分类。
func Apply(p *models.LearningProfile, activityType string, meta models.ActivityMetadata, now time.Time) Result {
	ensureMaps(p)
	res := Result{SkillArea: meta.SkillArea}

	if meta.SkillArea != "" {
		skill, ok := p.Skills[meta.SkillArea]
		if !ok {
			skill = NewSkill(now)
			p.Skills[meta.SkillArea] = skill
		}
		res.Gained = ExperienceGain(meta.Difficulty)
		res.LeveledUp = AddExperience(skill, res.Gained, activityType, now)
		res.Level = skill.Level
	}

	date := now.UTC().Format(DateLayout)
	UpdateStreak(streak(p, activityType), date)
	UpdateStreak(streak(p, models.StreakOverall), date)

	updateMetrics(&p.Metrics, activityType, meta)
	p.Strengths, p.SkillGaps = Classify(p.Skills)
	p.UpdatedAt = now
	return res
}

func ensureMaps(p *models.LearningProfile) {
	if p.Skills == nil {
		p.Skills = map[string]*models.SkillAssessment{}
	}
	if p.Streaks == nil {
		p.Streaks = map[string]*models.LearningStreak{}
	}
}

func streak(p *models.LearningProfile, key string) *models.LearningStreak {
	s, ok := p.Streaks[key]
	if !ok {
		s = &models.LearningStreak{}
		p.Streaks[key] = s
	}
	return s
}

// NewSkill 首次在某技能领域活动时创建
func NewSkill(now time.Time) *models.SkillAssessment {
	return &models.SkillAssessment{
		Level:             models.LevelBeginner,
		Confidence:        InitialConfidence,
		LastAssessedAt:    now,
		AssessmentHistory: []models.AssessmentEntry{},
	}
}

// AddExperience 增加经验，满 1000 且未到 master 时升一级，余数保留。
// 每次调用最多升一级；返回是否升级。
func AddExperience(s *models.SkillAssessment, gain int, source string, now time.Time) bool {
	s.Experience += gain
	leveled := false
	if s.Experience >= LevelUpThreshold && s.Level != models.LevelMaster {
		s.Level = s.Level.Next()
		s.Experience -= LevelUpThreshold
		s.Validated = false
		leveled = true
	} else {
		s.Validated = true
	}
	s.Confidence = math.Min(100, s.Confidence+ConfidenceStep)
	s.LastAssessedAt = now

	s.AssessmentHistory = append(s.AssessmentHistory, models.AssessmentEntry{
		Date:       now,
		Level:      s.Level,
		Experience: s.Experience,
		Source:     source,
	})
	if n := len(s.AssessmentHistory); n > MaxHistory {
		s.AssessmentHistory = append([]models.AssessmentEntry(nil), s.AssessmentHistory[n-MaxHistory:]...)
	}
	return leveled
}

// UpdateStreak 同一天重复活动不变；紧接的下一天 +1；间隔更久重置为 1
func UpdateStreak(s *models.LearningStreak, date string) {
	switch gap := dayGap(s.LastActivityDate, date); {
	case s.LastActivityDate == "":
		s.Current = 1
	case gap == 0:
		return
	case gap == 1:
		s.Current++
	case gap < 0:
		// 乱序的旧日期不影响连续天数
		return
	default:
		s.Current = 1
	}
	s.LastActivityDate = date
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
}

// dayGap 两个 YYYY-MM-DD 之间相差的天数；解析失败视为断开
func dayGap(from, to string) int {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return math.MaxInt32
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return math.MaxInt32
	}
	return int(b.Sub(a).Hours() / 24)
}

func updateMetrics(m *models.LearningMetrics, activityType string, meta models.ActivityMetadata) {
	m.TotalActivities++
	switch activityType {
	case models.ActivityContentRead:
		m.TotalContentConsumed++
		if meta.Completed {
			m.CompletedContent++
		}
	case models.ActivityContentCompleted:
		m.TotalContentConsumed++
		m.CompletedContent++
	case models.ActivityApplication:
		m.Applications++
	}
	if meta.DurationMinutes > 0 {
		m.SessionCount++
		m.TotalSessionMinutes += meta.DurationMinutes
		m.AverageSessionDuration = m.TotalSessionMinutes / float64(m.SessionCount)
	}
	if m.TotalContentConsumed > 0 {
		m.CompletionRate = float64(m.CompletedContent) / float64(m.TotalContentConsumed)
	}
	m.ApplicationRate = float64(m.Applications) / float64(m.TotalActivities)
}

// Classify 强项：advanced 及以上或信心 ≥ 80；短板：beginner 且信心 < 60。两者互斥，强项优先。
func Classify(skills map[string]*models.SkillAssessment) (strengths, gaps []string) {
	strengths, gaps = []string{}, []string{}
	for area, s := range skills {
		switch {
		case s.Level.Number() >= models.LevelAdvanced.Number() || s.Confidence >= StrengthConfidence:
			strengths = append(strengths, area)
		case s.Level == models.LevelBeginner && s.Confidence < GapConfidence:
			gaps = append(gaps, area)
		}
	}
	sort.Strings(strengths)
	sort.Strings(gaps)
	return strengths, gaps
}

// OptimalLevel 推荐难度：在当前等级上按信心与难度偏好微调，限制在 beginner..expert
func OptimalLevel(s *models.SkillAssessment, difficultyPreference float64) models.Level {
	level, confidence := 1, InitialConfidence
	if s != nil {
		level, confidence = s.Level.Number(), s.Confidence
	}
	confAdj := clamp((confidence-70)/30, -1, 1)
	prefAdj := clamp((difficultyPreference-50)/50, -1, 1)
	target := clamp(float64(level)+0.3*(confAdj+prefAdj), 1, 4)
	return models.LevelFromNumber(int(math.Round(target)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
