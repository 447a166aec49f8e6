package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/cache"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/normalizer"
	"github.com/smerrill2/social-learning-app-sub001/internal/ranking"
	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	notes        []models.Note
	stories      []models.Story
	papers       []models.Paper
	interactions []models.Interaction
	candidateHit int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SavePreferences(_ context.Context, id uuid.UUID, prefs models.PreferenceProfile) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, Preferences: datatypes.NewJSONType(prefs)}
	f.users[id] = u
	cp := *u
	return &cp, nil
}

func (f *fakeStore) RecentNotes(_ context.Context, userID uuid.UUID, _ []string, limit int) ([]models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidateHit++
	var out []models.Note
	for _, n := range f.notes {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentStories(_ context.Context, since time.Time, _ []string, limit int) ([]models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Story
	for _, s := range f.stories {
		if !s.PublishedAt.Before(since) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentPapers(_ context.Context, since time.Time, _ []string, limit int) ([]models.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Paper
	for _, p := range f.papers {
		if !p.PublishedAt.Before(since) && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateNote(_ context.Context, n *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeStore) DeleteNote(_ context.Context, userID, noteID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.ID == noteID && n.UserID == userID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("note %s", noteID)
}

func (f *fakeStore) ListNotes(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Note, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []models.Note
	for _, n := range f.notes {
		if n.UserID == userID {
			mine = append(mine, n)
		}
	}
	total := len(mine)
	start := min(offset, total)
	end := min(start+limit, total)
	return mine[start:end], int64(total), nil
}

func (f *fakeStore) CreateInteraction(_ context.Context, in *models.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !in.Kind.Repeatable() {
		for _, x := range f.interactions {
			if x.UserID == in.UserID && x.ItemID == in.ItemID && x.Kind == in.Kind {
				return apperr.Conflict("%s already recorded", in.Kind)
			}
		}
	}
	f.interactions = append(f.interactions, *in)
	return nil
}

func newTestService(store *fakeStore) (*Service, *cache.Memory) {
	mem := cache.NewMemory()
	svc := NewService(store, mem, normalizer.New(rules.Default()), logger.Nop(), nil, DefaultOptions())
	svc.now = func() time.Time { return now }
	return svc, mem
}

func seed(store *fakeStore, userID uuid.UUID) {
	for i := 0; i < 4; i++ {
		store.notes = append(store.notes, models.Note{
			ID:        uuid.New(),
			UserID:    userID,
			Content:   "reflection on spaced repetition",
			Category:  "learning",
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < 5; i++ {
		store.stories = append(store.stories, models.Story{
			HNID:         100 + i,
			Title:        "Show HN: a new database engine",
			Score:        50 * (i + 1),
			CommentCount: 10,
			PublishedAt:  now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	store.stories = append(store.stories, models.Story{HNID: 999, Title: "stale", PublishedAt: now.Add(-10 * 24 * time.Hour)})
	store.papers = append(store.papers, models.Paper{
		Title:       "Working memory and attention",
		Abstract:    "A cognitive study.",
		URL:         "https://arxiv.org/abs/2401.00001",
		PublishedAt: now.Add(-2 * time.Hour),
	})
}

func TestGetPersonalizedFeed_RankedAndPaginated(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seed(store, userID)
	svc, _ := newTestService(store)

	page, err := svc.GetPersonalizedFeed(context.Background(), userID, 4, 0)
	require.NoError(t, err)

	assert.Len(t, page.Items, 4)
	assert.Equal(t, Pagination{Limit: 4, Offset: 0, Total: 10, HasMore: true}, page.Pagination)

	rest, err := svc.GetPersonalizedFeed(context.Background(), userID, 20, 8)
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.False(t, rest.Pagination.HasMore)

	for _, it := range page.Items {
		assert.Equal(t, it.Score, it.Relevance)
		assert.NotEqual(t, "link:999", it.ID)
	}
}

func TestGetPersonalizedFeed_DiversityToggle(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seed(store, userID)
	svc, _ := newTestService(store)

	norm := normalizer.New(rules.Default())
	sevenDays := now.Add(-7 * 24 * time.Hour)
	var fresh []models.Story
	for _, s := range store.stories {
		if !s.PublishedAt.Before(sevenDays) {
			fresh = append(fresh, s)
		}
	}
	candidates := norm.Normalize(store.notes, fresh, store.papers)

	// 默认偏好：排序后做多样性重排
	page, err := svc.GetPersonalizedFeed(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	want := ranking.Diversify(ranking.Rank(candidates, models.PreferenceProfile{}, now))
	assert.Equal(t, itemIDs(want), itemIDs(page.Items))

	zero := 0.0
	prefs := models.PreferenceProfile{FeedBehavior: models.FeedBehavior{DiversityImportance: &zero}}
	_, err = svc.UpdatePreferences(context.Background(), userID, prefs)
	require.NoError(t, err)

	page, err = svc.GetPersonalizedFeed(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	want = ranking.Rank(candidates, prefs, now)
	assert.Equal(t, itemIDs(want), itemIDs(page.Items))
}

func TestGetPersonalizedFeed_CachedUntilNoteCreated(t *testing.T) {
	store := newFakeStore()
	userID, other := uuid.New(), uuid.New()
	seed(store, userID)
	svc, mem := newTestService(store)

	_, err := svc.GetPersonalizedFeed(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	_, err = svc.GetPersonalizedFeed(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	_, err = svc.GetPersonalizedFeed(context.Background(), other, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.candidateHit)

	note, err := svc.CreateNote(context.Background(), userID, NoteInput{Content: "new thought", Tags: []string{" AI ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ai"}, []string(note.Tags))

	// 只有该用户的键被删除
	_, ok, _ := mem.Get(context.Background(), cache.FeedKey(other, initialGeneration, now.Format(time.DateOnly), 20, 0))
	assert.True(t, ok)
	_, ok, _ = mem.Get(context.Background(), cache.FeedKey(userID, initialGeneration, now.Format(time.DateOnly), 20, 0))
	assert.False(t, ok)

	page, err := svc.GetPersonalizedFeed(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, store.candidateHit)
	assert.Contains(t, itemIDs(page.Items), normalizer.NoteID(*note))
}

// blockingStore 第一次 RecentNotes 读完数据后停住，直到 release 关闭
type blockingStore struct {
	*fakeStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) RecentNotes(ctx context.Context, userID uuid.UUID, kw []string, limit int) ([]models.Note, error) {
	notes, err := b.fakeStore.RecentNotes(ctx, userID, kw, limit)
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return notes, err
}

func TestGetPersonalizedFeed_InvalidatedDuringBuild(t *testing.T) {
	inner := newFakeStore()
	userID := uuid.New()
	seed(inner, userID)
	store := &blockingStore{fakeStore: inner, entered: make(chan struct{}), release: make(chan struct{})}

	mem := cache.NewMemory()
	svc := NewService(store, mem, normalizer.New(rules.Default()), logger.Nop(), nil, DefaultOptions())
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	done := make(chan *Page, 1)
	go func() {
		page, err := svc.GetPersonalizedFeed(ctx, userID, 20, 0)
		assert.NoError(t, err)
		done <- page
	}()

	<-store.entered
	note, err := svc.CreateNote(ctx, userID, NoteInput{Content: "written while the feed was building"})
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.NotContains(t, itemIDs(stale.Items), normalizer.NoteID(*note))

	page, err := svc.GetPersonalizedFeed(ctx, userID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Pagination.Total)
	assert.Contains(t, itemIDs(page.Items), normalizer.NoteID(*note))
}

func TestGetPersonalizedFeed_Validation(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	for _, tc := range []struct{ limit, offset int }{{MaxLimit + 1, 0}, {-1, 0}, {10, -5}} {
		_, err := svc.GetPersonalizedFeed(context.Background(), uuid.New(), tc.limit, tc.offset)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "limit=%d offset=%d", tc.limit, tc.offset)
	}

	page, err := svc.GetPersonalizedFeed(context.Background(), uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, page.Pagination.Limit)
	assert.Empty(t, page.Items)
}

func TestRecordInteraction(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	userID := uuid.New()
	ctx := context.Background()

	in := InteractionInput{ItemType: models.ItemTypeLink, ItemID: "link:101", Kind: models.InteractionLike}
	_, err := svc.RecordInteraction(ctx, userID, in)
	require.NoError(t, err)

	_, err = svc.RecordInteraction(ctx, userID, in)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	view := InteractionInput{ItemType: models.ItemTypeLink, ItemID: "link:101", Kind: models.InteractionView}
	for i := 0; i < 2; i++ {
		_, err = svc.RecordInteraction(ctx, userID, view)
		require.NoError(t, err)
	}
	assert.Len(t, store.interactions, 3)

	_, err = svc.RecordInteraction(ctx, userID, InteractionInput{ItemType: "video", Kind: "poke"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestNotes_CreateListDelete(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, userID, NoteInput{Content: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	n, err := svc.CreateNote(ctx, userID, NoteInput{Content: "habit stacking works", Category: "productivity"})
	require.NoError(t, err)

	notes, pg, err := svc.ListNotes(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, 1, pg.Total)

	assert.True(t, errors.Is(svc.DeleteNote(ctx, uuid.New(), n.ID), apperr.ErrNotFound))
	require.NoError(t, svc.DeleteNote(ctx, userID, n.ID))
}

func TestPreferences(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	userID := uuid.New()
	ctx := context.Background()

	def, err := svc.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, def.ContentTypeWeights["paper"])
	assert.Equal(t, 50.0, *def.FeedBehavior.RecencyWeight)

	bad := 140.0
	_, err = svc.UpdatePreferences(ctx, userID, models.PreferenceProfile{
		ContentTypeWeights: map[string]float64{"video": 10},
		FeedBehavior:       models.FeedBehavior{RecencyWeight: &bad},
	})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	got, err := svc.UpdatePreferences(ctx, userID, models.PreferenceProfile{
		ContentTypeWeights: map[string]float64{"paper": 90},
		CategoryWeights:    map[string]float64{"ai": 80},
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.ContentTypeWeights["paper"])
	assert.Equal(t, 50.0, got.ContentTypeWeights["note"])
	assert.Equal(t, models.PreferenceProfileVersion, got.Version)
}

func itemIDs(items []models.UnifiedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
