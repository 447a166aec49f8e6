// Package feed 个性化信息流：候选收集、评分排序、多样性重排、分页与缓存。
// 笔记、互动和偏好的写操作也在这里，它们都需要让该用户的 feed 缓存失效。
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/cache"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/normalizer"
	"github.com/smerrill2/social-learning-app-sub001/internal/ranking"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	initialGeneration = "0"
)

// Store feed 服务依赖的持久化能力
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SavePreferences(ctx context.Context, id uuid.UUID, prefs models.PreferenceProfile) (*models.User, error)

	RecentNotes(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]models.Note, error)
	RecentStories(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Story, error)
	RecentPapers(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Paper, error)

	CreateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error
	ListNotes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Note, int64, error)
	CreateInteraction(ctx context.Context, in *models.Interaction) error
}

// Options 候选规模与缓存时长
type Options struct {
	CacheTTL    time.Duration
	NoteLimit   int
	StoryLimit  int
	PaperLimit  int
	StoryMaxAge time.Duration
	PaperMaxAge time.Duration
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:    15 * time.Minute,
		NoteLimit:   50,
		StoryLimit:  100,
		PaperLimit:  50,
		StoryMaxAge: 7 * 24 * time.Hour,
		PaperMaxAge: 30 * 24 * time.Hour,
	}
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

type Page struct {
	Items      []models.UnifiedItem `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

type Service struct {
	store   Store
	cache   cache.Cache
	norm    *normalizer.Normalizer
	log     *logger.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time

	group   singleflight.Group
	indexMu sync.Mutex
}

func NewService(store Store, c cache.Cache, norm *normalizer.Normalizer, log *logger.Logger, m *metrics.Metrics, opts Options) *Service {
	return &Service{
		store:   store,
		cache:   c,
		norm:    norm,
		log:     log.With("service", "feed"),
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// GetPersonalizedFeed 命中缓存直接返回；同一 key 的并发未命中只计算一次
func (s *Service) GetPersonalizedFeed(ctx context.Context, userID uuid.UUID, limit, offset int) (*Page, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}

	gen := s.generation(ctx, userID)
	key := cache.FeedKey(userID, gen, s.now().UTC().Format(time.DateOnly), limit, offset)
	var cached Page
	hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
	s.metrics.RecordCache("feed", hit, err)
	if err != nil {
		s.log.Warn("feed cache read failed", "key", key, "error", err)
	}
	if hit {
		return &cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		page, err := s.build(ctx, userID, limit, offset)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, userID, gen, key, page)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

func validatePage(limit, offset int) error {
	var errs []apperr.FieldError
	if limit < 1 || limit > MaxLimit {
		errs = append(errs, apperr.FieldError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxLimit)})
	}
	if offset < 0 {
		errs = append(errs, apperr.FieldError{Field: "offset", Message: "must be >= 0"})
	}
	return apperr.NewValidation(errs)
}

func (s *Service) build(ctx context.Context, userID uuid.UUID, limit, offset int) (*Page, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		notes   []models.Note
		stories []models.Story
		papers  []models.Paper
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		notes, err = s.store.RecentNotes(gctx, userID, nil, s.opts.NoteLimit)
		return err
	})
	g.Go(func() (err error) {
		stories, err = s.store.RecentStories(gctx, now.Add(-s.opts.StoryMaxAge), nil, s.opts.StoryLimit)
		return err
	})
	g.Go(func() (err error) {
		papers, err = s.store.RecentPapers(gctx, now.Add(-s.opts.PaperMaxAge), nil, s.opts.PaperLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather feed candidates: %w", err)
	}

	items := ranking.Rank(s.norm.Normalize(notes, stories, papers), prefs, now)
	if prefs.DiversityImportance() > 0 {
		items = ranking.Diversify(items)
	}
	return paginate(items, limit, offset), nil
}

// preferences 用户不存在时使用默认偏好
func (s *Service) preferences(ctx context.Context, userID uuid.UUID) (models.PreferenceProfile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.PreferenceProfile{}, nil
	}
	if err != nil {
		return models.PreferenceProfile{}, fmt.Errorf("load preferences: %w", err)
	}
	return u.Preferences.Data(), nil
}

func paginate(items []models.UnifiedItem, limit, offset int) *Page {
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	page := make([]models.UnifiedItem, end-start)
	copy(page, items[start:end])
	return &Page{
		Items: page,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: end < total,
		},
	}
}

// generation 读取失败或不存在时为初始代数
func (s *Service) generation(ctx context.Context, userID uuid.UUID) string {
	raw, ok, err := s.cache.Get(ctx, cache.FeedGenerationKey(userID))
	if err != nil {
		s.log.Warn("feed generation read failed", "user_id", userID, "error", err)
	}
	if !ok || len(raw) == 0 {
		return initialGeneration
	}
	return string(raw)
}

// generationTTL 必须长于 feed 条目本身
func (s *Service) generationTTL() time.Duration {
	return max(24*time.Hour, 2*s.opts.CacheTTL)
}

// remember 写入缓存并把 key 登记到用户的 feed 索引；缓存失败只记录日志。
// 构建期间发生过失效（代数已变）时不写入。
func (s *Service) remember(ctx context.Context, userID uuid.UUID, gen, key string, page *Page) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if cur := s.generation(ctx, userID); cur != gen {
		s.log.Debug("feed invalidated during build, not caching", "user_id", userID)
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, page, s.opts.CacheTTL); err != nil {
		s.log.Warn("feed cache write failed", "key", key, "error", err)
		return
	}
	indexKey := cache.FeedIndexKey(userID)
	var keys []string
	if _, err := cache.GetJSON(ctx, s.cache, indexKey, &keys); err != nil {
		s.log.Warn("feed index read failed", "user_id", userID, "error", err)
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	keys = append(keys, key)
	if err := cache.SetJSON(ctx, s.cache, indexKey, keys, s.opts.CacheTTL); err != nil {
		s.log.Warn("feed index write failed", "user_id", userID, "error", err)
	}
}

// Invalidate 更换该用户的 feed 代数，并删除登记过的 feed 键
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if err := s.cache.Set(ctx, cache.FeedGenerationKey(userID), []byte(uuid.NewString()), s.generationTTL()); err != nil {
		s.log.Warn("feed generation bump failed", "user_id", userID, "error", err)
	}

	indexKey := cache.FeedIndexKey(userID)
	raw, ok, err := s.cache.Get(ctx, indexKey)
	if err != nil {
		s.log.Warn("feed index read failed", "user_id", userID, "error", err)
		return
	}
	var keys []string
	if ok {
		if err := json.Unmarshal(raw, &keys); err != nil {
			s.log.Warn("feed index corrupt", "user_id", userID, "error", err)
		}
	}
	for _, k := range keys {
		s.group.Forget(k)
	}
	if err := s.cache.Delete(ctx, append(keys, indexKey)...); err != nil {
		s.log.Warn("feed cache invalidation failed", "user_id", userID, "error", err)
		return
	}
	s.log.Debug("feed cache invalidated", "user_id", userID, "keys", len(keys))
}
