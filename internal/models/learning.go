package models

import (
	"time"

	"github.com/google/uuid"
)

// Level 技能等级，严格有序
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelExpert       Level = "expert"
	LevelMaster       Level = "master"
)

var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert, LevelMaster}

// Number beginner=1 … master=5，未知等级按 beginner 处理
func (l Level) Number() int {
	for i, lv := range Levels {
		if lv == l {
			return i + 1
		}
	}
	return 1
}

func (l Level) Valid() bool {
	for _, lv := range Levels {
		if lv == l {
			return true
		}
	}
	return false
}

// Next master 之后不再晋级
func (l Level) Next() Level {
	n := l.Number()
	if n >= len(Levels) {
		return LevelMaster
	}
	return Levels[n]
}

// LevelFromNumber 超出范围时截断到两端
func LevelFromNumber(n int) Level {
	if n < 1 {
		n = 1
	}
	if n > len(Levels) {
		n = len(Levels)
	}
	return Levels[n-1]
}

type AssessmentEntry struct {
	Date       time.Time `json:"date"`
	Level      Level     `json:"level"`
	Experience int       `json:"experience"`
	Source     string    `json:"source"`
}

type SkillAssessment struct {
	Level             Level             `json:"level"`
	Experience        int               `json:"experience"`
	Confidence        float64           `json:"confidence"`
	Validated         bool              `json:"validated"`
	LastAssessedAt    time.Time         `json:"last_assessed_at"`
	AssessmentHistory []AssessmentEntry `json:"assessment_history"`
}

// LearningStreak 日期按 YYYY-MM-DD 字符串比较
type LearningStreak struct {
	Current          int    `json:"current"`
	Longest          int    `json:"longest"`
	LastActivityDate string `json:"last_activity_date"`
}

type LearningMetrics struct {
	TotalActivities        int     `json:"total_activities"`
	TotalContentConsumed   int     `json:"total_content_consumed"`
	CompletedContent       int     `json:"completed_content"`
	Applications           int     `json:"applications"`
	SessionCount           int     `json:"session_count"`
	TotalSessionMinutes    float64 `json:"total_session_minutes"`
	AverageSessionDuration float64 `json:"average_session_duration"`
	CompletionRate         float64 `json:"completion_rate"`
	ApplicationRate        float64 `json:"application_rate"`
}

type Goal struct {
	ID          uuid.UUID `json:"id"`
	SkillArea   string    `json:"skill_area"`
	Title       string    `json:"title"`
	TargetLevel Level     `json:"target_level"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// LearningProfile 学习画像聚合根
type LearningProfile struct {
	UserID               uuid.UUID                   `json:"user_id"`
	Skills               map[string]*SkillAssessment `json:"skills"`
	Streaks              map[string]*LearningStreak  `json:"streaks"`
	Metrics              LearningMetrics             `json:"metrics"`
	Goals                []Goal                      `json:"goals"`
	SkillGaps            []string                    `json:"skill_gaps"`
	Strengths            []string                    `json:"strengths"`
	DifficultyPreference float64                     `json:"difficulty_preference"`
	AdaptiveLearningRate float64                     `json:"adaptive_learning_rate"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

// NewLearningProfile 首次记录活动时创建的默认画像
func NewLearningProfile(userID uuid.UUID, now time.Time) *LearningProfile {
	return &LearningProfile{
		UserID:               userID,
		Skills:               map[string]*SkillAssessment{},
		Streaks:              map[string]*LearningStreak{},
		Goals:                []Goal{},
		SkillGaps:            []string{},
		Strengths:            []string{},
		DifficultyPreference: DefaultWeight,
		AdaptiveLearningRate: 0.5,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// HasActiveGoal 是否有针对该技能领域的进行中目标
func (p *LearningProfile) HasActiveGoal(skillArea string) bool {
	for _, g := range p.Goals {
		if g.Active && g.SkillArea == skillArea {
			return true
		}
	}
	return false
}

// ActivityMetadata trackActivity 的附加信息
type ActivityMetadata struct {
	SkillArea       string  `json:"skill_area,omitempty"`
	Difficulty      Level   `json:"difficulty,omitempty"`
	DurationMinutes float64 `json:"duration_minutes,omitempty"`
	Completed       bool    `json:"completed,omitempty"`
	ContentRef      string  `json:"content_ref,omitempty"`
}

// 活动类型
const (
	ActivityContentRead      = "content_read"
	ActivityContentCompleted = "content_completed"
	ActivityPractice         = "practice"
	ActivityQuiz             = "quiz"
	ActivityApplication      = "application"
	ActivityNoteCreated      = "note_created"

	StreakOverall = "overall"
)

// ContentAssessment 已标注难度和技能领域的推荐候选内容
type ContentAssessment struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ItemRef       string    `json:"item_ref" gorm:"uniqueIndex"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	SkillArea     string    `json:"skill_area" gorm:"index"`
	Difficulty    Level     `json:"difficulty"`
	LearningValue float64   `json:"learning_value"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recommendation 推荐结果
type Recommendation struct {
	Content     ContentAssessment `json:"content"`
	Relevance   float64           `json:"relevance"`
	Score       float64           `json:"score"`
	TargetLevel Level             `json:"target_level"`
	MatchesGoal bool              `json:"matches_goal"`
}

type ProgressInsights struct {
	OverallScore        float64  `json:"overall_score"`
	CurrentLevel        Level    `json:"current_level"`
	SkillGaps           []string `json:"skill_gaps"`
	Strengths           []string `json:"strengths"`
	RecommendedActions  []string `json:"recommended_actions"`
	NextMilestones      []string `json:"next_milestones"`
	MotivationalMessage string   `json:"motivational_message"`
}
