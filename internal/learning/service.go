package learning

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/progression"
)

// Store 学习服务依赖的持久化能力
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, bool, error)
	SaveProfile(ctx context.Context, profile *models.LearningProfile, awards []models.UserAchievement) error
	UnearnedAchievements(ctx context.Context, userID uuid.UUID) ([]models.Achievement, error)
	UserAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
	SeedAchievements(ctx context.Context, catalog []models.Achievement) error
	CandidateContent(ctx context.Context, skillAreas []string, levels []models.Level, limit int) ([]models.ContentAssessment, error)
	UpsertContentAssessments(ctx context.Context, items []models.ContentAssessment) error
}

type Service struct {
	store   Store
	log     *logger.Logger
	metrics *metrics.Metrics
	locks   *keyedMutex
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Service)

// WithClock 测试中固定时间
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand 注入随机源，激励语的选择因此可复现
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log.With("service", "learning"),
		locks: newKeyedMutex(),
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedAchievements 启动时写入成就目录
func (s *Service) SeedAchievements(ctx context.Context, catalog []models.Achievement) error {
	if err := s.store.SeedAchievements(ctx, catalog); err != nil {
		return fmt.Errorf("seed achievements: %w", err)
	}
	s.log.Info("achievement catalog seeded", "count", len(catalog))
	return nil
}

// TrackActivity 记录一次学习活动。
// 同一用户的调用串行执行：读取画像 → 更新 → 评估成就 → 同一事务保存画像与成就。
func (s *Service) TrackActivity(ctx context.Context, userID uuid.UUID, activityType string, meta models.ActivityMetadata) ([]models.UserAchievement, error) {
	activityType = strings.TrimSpace(activityType)
	if err := validateActivity(activityType, meta); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID.String())
	defer unlock()

	now := s.now()
	profile, err := s.loadOrCreate(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	res := progression.Apply(profile, activityType, meta, now)

	unearned, err := s.store.UnearnedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load unearned achievements: %w", err)
	}
	awards := Evaluate(profile, unearned, now)

	if err := s.store.SaveProfile(ctx, profile, awards); err != nil {
		return nil, fmt.Errorf("save learning profile: %w", err)
	}

	s.metrics.RecordActivity(activityType)
	for _, a := range awards {
		s.metrics.RecordAward(a.AchievementID)
	}
	if res.LeveledUp {
		s.log.Info("skill level up", "user_id", userID, "skill_area", res.SkillArea, "level", res.Level)
	}
	if len(awards) > 0 {
		s.log.Info("achievements awarded", "user_id", userID, "count", len(awards))
	}
	if awards == nil {
		awards = []models.UserAchievement{}
	}
	return awards, nil
}

func validateActivity(activityType string, meta models.ActivityMetadata) error {
	var errs []apperr.FieldError
	if activityType == "" {
		errs = append(errs, apperr.FieldError{Field: "activity_type", Message: "is required"})
	}
	if meta.Difficulty != "" && !meta.Difficulty.Valid() {
		errs = append(errs, apperr.FieldError{Field: "difficulty", Message: "must be one of beginner, intermediate, advanced, expert, master"})
	}
	if meta.DurationMinutes < 0 {
		errs = append(errs, apperr.FieldError{Field: "duration_minutes", Message: "must be >= 0"})
	}
	if len(meta.SkillArea) > 64 {
		errs = append(errs, apperr.FieldError{Field: "skill_area", Message: "must be at most 64 characters"})
	}
	return apperr.NewValidation(errs)
}

func (s *Service) loadOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.LearningProfile, error) {
	p, ok, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load learning profile: %w", err)
	}
	if !ok {
		return models.NewLearningProfile(userID, now), nil
	}
	return p, nil
}

// AddGoal 新增学习目标
func (s *Service) AddGoal(ctx context.Context, userID uuid.UUID, skillArea, title string, target models.Level) (*models.Goal, error) {
	skillArea, title = strings.TrimSpace(skillArea), strings.TrimSpace(title)
	var errs []apperr.FieldError
	if skillArea == "" {
		errs = append(errs, apperr.FieldError{Field: "skill_area", Message: "is required"})
	}
	if target != "" && !target.Valid() {
		errs = append(errs, apperr.FieldError{Field: "target_level", Message: "unknown level"})
	}
	if err := apperr.NewValidation(errs); err != nil {
		return nil, err
	}
	if title == "" {
		title = "Improve " + skillArea
	}

	unlock := s.locks.Lock(userID.String())
	defer unlock()

	now := s.now()
	profile, err := s.loadOrCreate(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if target == "" {
		current := models.LevelBeginner
		if sk, ok := profile.Skills[skillArea]; ok {
			current = sk.Level
		}
		target = current.Next()
	}
	goal := models.Goal{
		ID:          uuid.New(),
		SkillArea:   skillArea,
		Title:       title,
		TargetLevel: target,
		Active:      true,
		CreatedAt:   now,
	}
	profile.Goals = append(profile.Goals, goal)
	profile.UpdatedAt = now
	if err := s.store.SaveProfile(ctx, profile, nil); err != nil {
		return nil, fmt.Errorf("save learning profile: %w", err)
	}
	return &goal, nil
}

// ListAchievements 用户已获得的成就
func (s *Service) ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	out, err := s.store.UserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return out, nil
}

// Profile 读取画像；不存在时返回 NotFound
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	p, ok, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load learning profile: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("learning profile for user %s", userID)
	}
	return p, nil
}

func (s *Service) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}
