package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error
)

// openTestDB 未设置 TEST_POSTGRES_DSN 时跳过
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		testDB, dbErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
			TranslateError: true,
		})
		if dbErr != nil {
			return
		}
		dbErr = New(testDB, logger.Nop()).Migrate()
	})
	if errors.Is(dbErr, errMissingDSN) {
		t.Skip("set TEST_POSTGRES_DSN to run store integration tests")
	}
	require.NoError(t, dbErr)
	return testDB
}

// newTestStore 每个测试在独立事务中运行，结束时回滚
func newTestStore(t *testing.T) *Store {
	t.Helper()
	tx := openTestDB(t).Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() { _ = tx.Rollback().Error })
	return New(tx, logger.Nop())
}

func TestSaveProfile_RoundTripAndAwardIdempotence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SeedAchievements(ctx, []models.Achievement{
		{ID: "t-streak-3", Category: "consistency", Tier: "bronze", IsActive: true,
			Criteria: datatypes.NewJSONType(models.Criteria{Type: models.CriterionLearningStreak, Threshold: 3})},
		{ID: "t-consumed-1", Category: "exploration", Tier: "bronze", IsActive: true,
			Criteria: datatypes.NewJSONType(models.Criteria{Type: models.CriterionContentConsumed, Threshold: 1})},
	}))

	userID := uuid.New()
	_, ok, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	p := models.NewLearningProfile(userID, now)
	p.Skills["ai"] = &models.SkillAssessment{Level: models.LevelAdvanced, Experience: 120, Confidence: 54}
	award := models.UserAchievement{ID: uuid.New(), UserID: userID, AchievementID: "t-streak-3", EarnedAt: now}
	require.NoError(t, s.SaveProfile(ctx, p, []models.UserAchievement{award}))

	got, ok, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.LevelAdvanced, got.Skills["ai"].Level)
	assert.Equal(t, 120, got.Skills["ai"].Experience)

	// 重复发放同一成就被忽略
	dup := models.UserAchievement{ID: uuid.New(), UserID: userID, AchievementID: "t-streak-3", EarnedAt: now}
	require.NoError(t, s.SaveProfile(ctx, got, []models.UserAchievement{dup}))

	earned, err := s.UserAchievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, award.ID, earned[0].ID)

	unearned, err := s.UnearnedAchievements(ctx, userID)
	require.NoError(t, err)
	ids := make([]string, 0, len(unearned))
	for _, a := range unearned {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "t-consumed-1")
	assert.NotContains(t, ids, "t-streak-3")
}

func TestCreateInteraction_Conflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	like := func() *models.Interaction {
		return &models.Interaction{UserID: userID, ItemType: models.ItemTypeLink, ItemID: "link:42", Kind: models.InteractionLike}
	}
	require.NoError(t, s.CreateInteraction(ctx, like()))
	assert.ErrorIs(t, s.CreateInteraction(ctx, like()), apperr.ErrConflict)

	view := &models.Interaction{UserID: userID, ItemType: models.ItemTypeLink, ItemID: "link:42", Kind: models.InteractionView}
	require.NoError(t, s.CreateInteraction(ctx, view))
	view.ID = uuid.Nil
	assert.NoError(t, s.CreateInteraction(ctx, view))
}

func TestCreateInteraction_ConcurrentLikes(t *testing.T) {
	db := openTestDB(t)
	s := New(db, logger.Nop())
	ctx := context.Background()
	userID := uuid.New()
	t.Cleanup(func() { db.Where("user_id = ?", userID).Delete(&models.Interaction{}) })

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateInteraction(ctx, &models.Interaction{
				UserID: userID, ItemType: models.ItemTypePaper, ItemID: "paper:7", Kind: models.InteractionLike,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	var n int64
	require.NoError(t, db.Model(&models.Interaction{}).Where("user_id = ?", userID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRecentStories_KeywordFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertStories(ctx, []models.Story{
		{HNID: 9000001, Title: "A new LLM benchmark", PublishedAt: now},
		{HNID: 9000002, Title: "Gardening in 100% humidity", PublishedAt: now},
		{HNID: 9000003, Title: "Old llm news", PublishedAt: now.Add(-30 * 24 * time.Hour)},
	}))

	got, err := s.RecentStories(ctx, now.Add(-time.Hour), []string{"llm"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9000001, got[0].HNID)

	// 标点只作分隔符
	got, err = s.RecentStories(ctx, now.Add(-time.Hour), []string{"100%"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9000002, got[0].HNID)
}

func TestRecentPapers_WholeWordOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertPapers(ctx, []models.Paper{
		{Title: "Training again in a new domain", Abstract: "Maintaining explainability.", URL: "https://arxiv.org/abs/t-1", PublishedAt: now},
		{Title: "Evaluating AI tutors", Abstract: "A field study.", URL: "https://arxiv.org/abs/t-2", PublishedAt: now},
	}))

	got, err := s.RecentPapers(ctx, now.Add(-time.Hour), []string{"ai"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://arxiv.org/abs/t-2", got[0].URL)
}

func TestRecentNotes_MatchesTagsAndCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, s.CreateNote(ctx, &models.Note{UserID: userID, Content: "read later", Tags: datatypes.JSONSlice[string]{"ai"}}))
	require.NoError(t, s.CreateNote(ctx, &models.Note{UserID: userID, Content: "weekly review", Category: "productivity"}))
	require.NoError(t, s.CreateNote(ctx, &models.Note{UserID: userID, Content: "said nothing useful"}))

	got, err := s.RecentNotes(ctx, userID, []string{"ai"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "read later", got[0].Content)

	got, err = s.RecentNotes(ctx, userID, []string{"productivity"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "weekly review", got[0].Content)
}

func TestDeleteNote_OwnerOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	note := &models.Note{UserID: owner, Content: "spaced repetition works"}
	require.NoError(t, s.CreateNote(ctx, note))

	assert.ErrorIs(t, s.DeleteNote(ctx, uuid.New(), note.ID), apperr.ErrNotFound)
	require.NoError(t, s.DeleteNote(ctx, owner, note.ID))

	notes, total, err := s.ListNotes(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Zero(t, total)
}

func TestCandidateContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertContentAssessments(ctx, []models.ContentAssessment{
		{ItemRef: "t:1", SkillArea: "t-ai", Difficulty: models.LevelBeginner, LearningValue: 4},
		{ItemRef: "t:2", SkillArea: "t-ai", Difficulty: models.LevelIntermediate, LearningValue: 9},
		{ItemRef: "t:3", SkillArea: "t-ai", Difficulty: models.LevelExpert, LearningValue: 10},
	}))

	got, err := s.CandidateContent(ctx, []string{"t-ai"}, []models.Level{models.LevelBeginner, models.LevelIntermediate}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t:2", got[0].ItemRef)
	assert.Equal(t, "t:1", got[1].ItemRef)
}
