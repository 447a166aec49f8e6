package learning

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// fakeStore 内存实现；画像按 JSON 存取以模拟持久化后的拷贝语义
type fakeStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID][]byte
	catalog  []models.Achievement
	earned   map[uuid.UUID]map[string]models.UserAchievement
	content  []models.ContentAssessment
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[uuid.UUID][]byte{},
		earned:   map[uuid.UUID]map[string]models.UserAchievement{},
	}
}

func (f *fakeStore) put(p *models.LearningProfile) {
	data, _ := json.Marshal(p)
	f.profiles[p.UserID] = data
}

func (f *fakeStore) GetProfile(_ context.Context, userID uuid.UUID) (*models.LearningProfile, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.profiles[userID]
	if !ok {
		return nil, false, nil
	}
	var p models.LearningProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (f *fakeStore) SaveProfile(_ context.Context, p *models.LearningProfile, awards []models.UserAchievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.put(p)
	for _, a := range awards {
		if f.earned[a.UserID] == nil {
			f.earned[a.UserID] = map[string]models.UserAchievement{}
		}
		if _, dup := f.earned[a.UserID][a.AchievementID]; !dup {
			f.earned[a.UserID][a.AchievementID] = a
		}
	}
	return nil
}

func (f *fakeStore) UnearnedAchievements(_ context.Context, userID uuid.UUID) ([]models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Achievement
	for _, a := range f.catalog {
		if _, ok := f.earned[userID][a.ID]; !ok && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UserAchievements(_ context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.UserAchievement{}
	for _, a := range f.earned[userID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func (f *fakeStore) SeedAchievements(_ context.Context, catalog []models.Achievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog = catalog
	return nil
}

func (f *fakeStore) CandidateContent(_ context.Context, areas []string, levels []models.Level, limit int) ([]models.ContentAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inAreas := func(a string) bool {
		if len(areas) == 0 {
			return true
		}
		for _, x := range areas {
			if x == a {
				return true
			}
		}
		return false
	}
	inLevels := func(l models.Level) bool {
		for _, x := range levels {
			if x == l {
				return true
			}
		}
		return len(levels) == 0
	}
	var out []models.ContentAssessment
	for _, c := range f.content {
		if inAreas(c.SkillArea) && inLevels(c.Difficulty) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LearningValue != out[j].LearningValue {
			return out[i].LearningValue > out[j].LearningValue
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertContentAssessments(_ context.Context, items []models.ContentAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range items {
		replaced := false
		for i := range f.content {
			if f.content[i].ItemRef == in.ItemRef {
				in.ID = f.content[i].ID
				f.content[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			in.ID = uint(len(f.content) + 1)
			f.content = append(f.content, in)
		}
	}
	return nil
}
