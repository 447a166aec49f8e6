package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// 打分常量
const (
	PersonalizedBoost   = 0.8
	CategoryFactor      = 0.3
	TagFactor           = 0.2
	PopularityCap       = 500.0
	NeutralPopularity   = 0.5
	DefaultRecencyBoost = 0.6
	InterestThreshold   = 70.0
	recencyHalfLife     = 24.0
)

// Terms 相关性得分的各组成项
type Terms struct {
	Recency     float64 `json:"recency"`
	Popularity  float64 `json:"popularity"`
	ContentType float64 `json:"content_type"`
	Category    float64 `json:"category"`
	Tags        float64 `json:"tags"`
}

func (t Terms) Total() float64 {
	return t.Recency + t.Popularity + t.ContentType + t.Category + t.Tags
}

// Score 计算单条内容的相关性得分，各项相加
func Score(item models.UnifiedItem, profile models.PreferenceProfile, now time.Time) float64 {
	return Breakdown(item, profile, now).Total()
}

func Breakdown(item models.UnifiedItem, profile models.PreferenceProfile, now time.Time) Terms {
	var t Terms
	recencyBoost, popularityBoost := boosts(profile)

	ageHours := now.Sub(item.PublishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	t.Recency = math.Exp(-ageHours/recencyHalfLife) * recencyBoost * profile.RecencyWeight() / 100

	popularity := NeutralPopularity
	if item.Type == models.ItemTypeLink {
		popularity = math.Max(0, math.Min(item.Popularity/PopularityCap, 1))
	}
	t.Popularity = popularity * popularityBoost * profile.PopularityWeight() / 100

	t.ContentType = profile.ContentTypeWeight(string(item.Type)) / 100 * PersonalizedBoost

	if item.Type == models.ItemTypePaper {
		w, _ := profile.CategoryWeight(item.Category)
		t.Category = w / 100 * CategoryFactor
	}

	t.Tags = TagOverlap(item.Tags, UserInterests(profile)) * TagFactor
	return t
}

// boosts 把 recency/popularity 两个权重归一化；两者都未设置时取 0.6/0.4
func boosts(profile models.PreferenceProfile) (float64, float64) {
	r := profile.FeedBehavior.RecencyWeight
	p := profile.FeedBehavior.PopularityWeight
	if r == nil && p == nil {
		return DefaultRecencyBoost, 1 - DefaultRecencyBoost
	}
	rw, pw := profile.RecencyWeight(), profile.PopularityWeight()
	if rw+pw == 0 {
		return DefaultRecencyBoost, 1 - DefaultRecencyBoost
	}
	return rw / (rw + pw), pw / (rw + pw)
}

// UserInterests 权重超过 70 的分类，按名称排序
func UserInterests(profile models.PreferenceProfile) []string {
	interests := make([]string, 0, len(profile.CategoryWeights))
	for k, w := range profile.CategoryWeights {
		if w > InterestThreshold {
			interests = append(interests, k)
		}
	}
	sort.Strings(interests)
	return interests
}

// TagOverlap 命中标签数 / max(|tags|, |interests|)，大小写不敏感的双向子串匹配
func TagOverlap(tags, interests []string) float64 {
	if len(tags) == 0 || len(interests) == 0 {
		return 0
	}
	lowered := make([]string, len(interests))
	for i, in := range interests {
		lowered[i] = strings.ToLower(in)
	}
	matches := 0
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, in := range lowered {
			if t == "" || in == "" {
				continue
			}
			if strings.Contains(t, in) || strings.Contains(in, t) {
				matches++
				break
			}
		}
	}
	denom := len(tags)
	if len(interests) > denom {
		denom = len(interests)
	}
	return float64(matches) / float64(denom)
}

// Rank 打分并按得分降序排列；同分按 id 升序
func Rank(items []models.UnifiedItem, profile models.PreferenceProfile, now time.Time) []models.UnifiedItem {
	ranked := make([]models.UnifiedItem, len(items))
	copy(ranked, items)
	for i := range ranked {
		s := Score(ranked[i], profile, now)
		ranked[i].Score = s
		ranked[i].Relevance = s
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
