package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/feed"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/store"
)

type FeedService interface {
	GetPersonalizedFeed(ctx context.Context, userID uuid.UUID, limit, offset int) (*feed.Page, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (models.PreferenceProfile, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs models.PreferenceProfile) (models.PreferenceProfile, error)
	CreateNote(ctx context.Context, userID uuid.UUID, in feed.NoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error
	ListNotes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Note, feed.Pagination, error)
	RecordInteraction(ctx context.Context, userID uuid.UUID, in feed.InteractionInput) (*models.Interaction, error)
}

type PackService interface {
	GetDailyPack(ctx context.Context, userID uuid.UUID, topic string) (*models.DailyPack, error)
}

type LearningService interface {
	TrackActivity(ctx context.Context, userID uuid.UUID, activityType string, meta models.ActivityMetadata) ([]models.UserAchievement, error)
	GetRecommendations(ctx context.Context, userID uuid.UUID, skillArea string, limit int) ([]models.Recommendation, error)
	GetProgressInsights(ctx context.Context, userID uuid.UUID) (*models.ProgressInsights, error)
	AddGoal(ctx context.Context, userID uuid.UUID, skillArea, title string, target models.Level) (*models.Goal, error)
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
	AddContent(ctx context.Context, items []models.ContentAssessment) error
}

type StatsSource interface {
	SourceStats(ctx context.Context) ([]store.SourceStat, error)
}

type Handler struct {
	feed     FeedService
	pack     PackService
	learning LearningService
	stats    StatsSource
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewHandler(fs FeedService, ps PackService, ls LearningService, stats StatsSource, log *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{feed: fs, pack: ps, learning: ls, stats: stats, log: log.With("component", "api"), metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "social-learning"})
	})
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	api.GET("/items/stats", h.GetStats)
	api.POST("/learning/content", h.AddContent)

	user := api.Group("", RequireUser())
	{
		user.GET("/feed", h.GetFeed)
		user.GET("/daily-pack", h.GetDailyPack)

		user.GET("/preferences", h.GetPreferences)
		user.PUT("/preferences", h.UpdatePreferences)

		user.POST("/notes", h.CreateNote)
		user.GET("/notes", h.ListNotes)
		user.DELETE("/notes/:id", h.DeleteNote)

		user.POST("/interactions", h.CreateInteraction)

		user.POST("/learning/activity", h.TrackActivity)
		user.GET("/learning/recommendations", h.GetRecommendations)
		user.GET("/learning/insights", h.GetInsights)
		user.POST("/learning/goals", h.AddGoal)
		user.GET("/achievements", h.ListAchievements)
	}
}

// GetFeed 个性化信息流
func (h *Handler) GetFeed(c *gin.Context) {
	limit, err := queryInt(c, "limit", feed.DefaultLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	page, err := h.feed.GetPersonalizedFeed(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetDailyPack 每日内容包
func (h *Handler) GetDailyPack(c *gin.Context) {
	p, err := h.pack.GetDailyPack(c.Request.Context(), userID(c), c.Query("topic"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.feed.GetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req models.PreferenceProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	prefs, err := h.feed.UpdatePreferences(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) CreateNote(c *gin.Context) {
	var req feed.NoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	note, err := h.feed.CreateNote(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *Handler) ListNotes(c *gin.Context) {
	limit, err := queryInt(c, "limit", feed.DefaultLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	notes, page, err := h.feed.ListNotes(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notes":      notes,
		"pagination": page,
	})
}

func (h *Handler) DeleteNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.log, apperr.NewValidation([]apperr.FieldError{{Field: "id", Message: "invalid note id"}}))
		return
	}
	if err := h.feed.DeleteNote(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateInteraction(c *gin.Context) {
	var req feed.InteractionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	rec, err := h.feed.RecordInteraction(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type activityRequest struct {
	ActivityType    string       `json:"activity_type" binding:"required,max=64"`
	SkillArea       string       `json:"skill_area" binding:"omitempty,max=64"`
	Difficulty      models.Level `json:"difficulty"`
	DurationMinutes float64      `json:"duration_minutes" binding:"gte=0"`
	Completed       bool         `json:"completed"`
	ContentRef      string       `json:"content_ref"`
}

// TrackActivity 记录学习活动，返回本次新获得的成就
func (h *Handler) TrackActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	awards, err := h.learning.TrackActivity(c.Request.Context(), userID(c), req.ActivityType, models.ActivityMetadata{
		SkillArea:       req.SkillArea,
		Difficulty:      req.Difficulty,
		DurationMinutes: req.DurationMinutes,
		Completed:       req.Completed,
		ContentRef:      req.ContentRef,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"awards": awards,
		"count":  len(awards),
	})
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	recs, err := h.learning.GetRecommendations(c.Request.Context(), userID(c), c.Query("skill_area"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendations": recs,
		"count":           len(recs),
	})
}

func (h *Handler) GetInsights(c *gin.Context) {
	insights, err := h.learning.GetProgressInsights(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

type goalRequest struct {
	SkillArea   string       `json:"skill_area" binding:"required,max=64"`
	Title       string       `json:"title" binding:"max=200"`
	TargetLevel models.Level `json:"target_level"`
}

func (h *Handler) AddGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	goal, err := h.learning.AddGoal(c.Request.Context(), userID(c), req.SkillArea, req.Title, req.TargetLevel)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, goal)
}

func (h *Handler) ListAchievements(c *gin.Context) {
	list, err := h.learning.ListAchievements(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"achievements": list,
		"count":        len(list),
	})
}

type contentRequest struct {
	Items []models.ContentAssessment `json:"items" binding:"required"`
}

// AddContent 维护推荐候选目录
func (h *Handler) AddContent(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	if err := h.learning.AddContent(c.Request.Context(), req.Items); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(req.Items)})
}

// GetStats 各来源条目统计
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.SourceStats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var total int64
	for _, s := range stats {
		total += s.Count
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"sources": stats,
	})
}
