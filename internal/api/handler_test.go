package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/feed"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/store"
)

type fakeFeed struct {
	lastLimit, lastOffset int
	deleteErr             error
	interactionErr        error
}

func (f *fakeFeed) GetPersonalizedFeed(_ context.Context, _ uuid.UUID, limit, offset int) (*feed.Page, error) {
	f.lastLimit, f.lastOffset = limit, offset
	if limit > feed.MaxLimit {
		return nil, apperr.NewValidation([]apperr.FieldError{{Field: "limit", Message: "too large"}})
	}
	return &feed.Page{
		Items:      []models.UnifiedItem{{ID: "link:1", Type: models.ItemTypeLink, Title: "t"}},
		Pagination: feed.Pagination{Limit: limit, Offset: offset, Total: 1},
	}, nil
}

func (f *fakeFeed) GetPreferences(context.Context, uuid.UUID) (models.PreferenceProfile, error) {
	return models.PreferenceProfile{Version: 1}, nil
}

func (f *fakeFeed) UpdatePreferences(_ context.Context, _ uuid.UUID, p models.PreferenceProfile) (models.PreferenceProfile, error) {
	return p, p.Validate()
}

func (f *fakeFeed) CreateNote(_ context.Context, userID uuid.UUID, in feed.NoteInput) (*models.Note, error) {
	return &models.Note{ID: uuid.New(), UserID: userID, Content: in.Content}, nil
}

func (f *fakeFeed) DeleteNote(context.Context, uuid.UUID, uuid.UUID) error { return f.deleteErr }

func (f *fakeFeed) ListNotes(context.Context, uuid.UUID, int, int) ([]models.Note, feed.Pagination, error) {
	return []models.Note{}, feed.Pagination{}, nil
}

func (f *fakeFeed) RecordInteraction(_ context.Context, userID uuid.UUID, in feed.InteractionInput) (*models.Interaction, error) {
	if f.interactionErr != nil {
		return nil, f.interactionErr
	}
	return &models.Interaction{ID: uuid.New(), UserID: userID, ItemID: in.ItemID, Kind: in.Kind}, nil
}

type fakePack struct{ topic string }

func (f *fakePack) GetDailyPack(_ context.Context, _ uuid.UUID, topic string) (*models.DailyPack, error) {
	f.topic = topic
	return &models.DailyPack{Date: "2024-01-01", Topic: topic, Items: []models.PackItem{{ID: "prompt:x:0"}}}, nil
}

type fakeLearning struct {
	activity string
	meta     models.ActivityMetadata
}

func (f *fakeLearning) TrackActivity(_ context.Context, userID uuid.UUID, activity string, meta models.ActivityMetadata) ([]models.UserAchievement, error) {
	f.activity, f.meta = activity, meta
	return []models.UserAchievement{{UserID: userID, AchievementID: "streak-3"}}, nil
}

func (f *fakeLearning) GetRecommendations(context.Context, uuid.UUID, string, int) ([]models.Recommendation, error) {
	return []models.Recommendation{}, nil
}

func (f *fakeLearning) GetProgressInsights(context.Context, uuid.UUID) (*models.ProgressInsights, error) {
	return &models.ProgressInsights{CurrentLevel: models.LevelBeginner}, nil
}

func (f *fakeLearning) AddGoal(_ context.Context, _ uuid.UUID, area, title string, lvl models.Level) (*models.Goal, error) {
	return &models.Goal{SkillArea: area, Title: title, TargetLevel: lvl, Active: true}, nil
}

func (f *fakeLearning) ListAchievements(context.Context, uuid.UUID) ([]models.UserAchievement, error) {
	return []models.UserAchievement{}, nil
}

func (f *fakeLearning) AddContent(_ context.Context, items []models.ContentAssessment) error {
	if len(items) == 0 {
		return apperr.NewValidation([]apperr.FieldError{{Field: "items", Message: "empty"}})
	}
	return nil
}

type fakeStats struct{}

func (fakeStats) SourceStats(context.Context) ([]store.SourceStat, error) {
	return []store.SourceStat{{Source: "notes", Count: 2}, {Source: "arxiv", Count: 3}}, nil
}

type fixture struct {
	router   *gin.Engine
	feed     *fakeFeed
	pack     *fakePack
	learning *fakeLearning
	user     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{feed: &fakeFeed{}, pack: &fakePack{}, learning: &fakeLearning{}, user: uuid.New()}
	log := logger.Nop()
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(RequestLogger(log, m))
	NewHandler(f.feed, f.pack, f.learning, fakeStats{}, log, m).RegisterRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string, withUser bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if withUser {
		req.Header.Set(UserIDHeader, f.user.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequireUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/feed", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set(UserIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetFeed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/feed", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, feed.DefaultLimit, f.feed.lastLimit)

	rec = f.do(http.MethodGet, "/api/feed?limit=5&offset=10", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.feed.lastLimit)
	assert.Equal(t, 10, f.feed.lastOffset)

	var page feed.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "link:1", page.Items[0].ID)
}

func TestGetFeed_ValidationEnvelope(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/feed?limit=abc", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_failed", body.Code)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "limit", body.Fields[0].Field)

	rec = f.do(http.MethodGet, "/api/feed?limit=500", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyPack_PassesTopic(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/daily-pack?topic=productivity", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "productivity", f.pack.topic)
}

func TestUpdatePreferences_Invalid(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPut, "/api/preferences", `{"content_type_weights":{"paper":101}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content_type_weights.paper", decodeError(t, rec).Fields[0].Field)

	rec = f.do(http.MethodPut, "/api/preferences", `{not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/notes", `{"content":"remember this"}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodDelete, "/api/notes/nope", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.feed.deleteErr = apperr.NotFound("note x")
	rec = f.do(http.MethodDelete, "/api/notes/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.feed.deleteErr = nil
	rec = f.do(http.MethodDelete, "/api/notes/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateInteraction_Conflict(t *testing.T) {
	f := newFixture(t)
	f.feed.interactionErr = apperr.Conflict("like already recorded")

	rec := f.do(http.MethodPost, "/api/interactions", `{"item_type":"link","item_id":"link:1","kind":"like"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Code)
}

func TestTrackActivity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/learning/activity",
		`{"activity_type":"practice","skill_area":"ai","difficulty":"expert","duration_minutes":25}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "practice", f.learning.activity)
	assert.Equal(t, models.LevelExpert, f.learning.meta.Difficulty)
	assert.Equal(t, 25.0, f.learning.meta.DurationMinutes)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = f.do(http.MethodPost, "/api/learning/activity", `{"skill_area":"ai"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/learning/activity", `{"activity_type":"quiz","duration_minutes":-1}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddGoal(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/learning/goals", `{"skill_area":"ai","target_level":"advanced"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"target_level":"advanced"`)

	rec = f.do(http.MethodPost, "/api/learning/goals", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/items/stats", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":5`)

	rec = f.do(http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/items/stats"`)
}

func TestAddContent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/learning/content",
		`{"items":[{"item_ref":"paper:1","skill_area":"ai","difficulty":"beginner","learning_value":7}]}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = f.do(http.MethodPost, "/api/learning/content", `{"items":[]}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
