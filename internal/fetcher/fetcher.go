package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
)

// Batch 一次抓取的结果，按来源分别入库
type Batch struct {
	Stories []models.Story
	Papers  []models.Paper
}

func (b Batch) Len() int { return len(b.Stories) + len(b.Papers) }

type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

const hnAPI = "https://hacker-news.firebaseio.com/v0"

// HackerNews fetcher
type HNFetcher struct {
	BaseURL string
	Limit   int
}

func NewHNFetcher(limit int) *HNFetcher {
	return &HNFetcher{BaseURL: hnAPI, Limit: limit}
}

func (f *HNFetcher) Name() string { return models.SourceHackerNews }

func (f *HNFetcher) Fetch(ctx context.Context) (Batch, error) {
	// HN API: {base}/topstories.json
	ids, err := fetchJSON[[]int](ctx, f.BaseURL+"/topstories.json")
	if err != nil {
		return Batch{}, err
	}

	limit := f.Limit
	if limit <= 0 || len(ids) < limit {
		limit = len(ids)
	}

	stories := make([]models.Story, 0, limit)
	for _, id := range ids[:limit] {
		if err := ctx.Err(); err != nil {
			return Batch{Stories: stories}, err
		}
		s, err := f.fetchItem(ctx, id)
		if err != nil {
			continue
		}
		stories = append(stories, s)
	}
	return Batch{Stories: stories}, nil
}

type HNItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

func (f *HNFetcher) fetchItem(ctx context.Context, id int) (models.Story, error) {
	hn, err := fetchJSON[HNItem](ctx, f.BaseURL+"/item/"+itoa(id)+".json")
	if err != nil {
		return models.Story{}, err
	}
	if hn.Dead || hn.Deleted || hn.Title == "" {
		return models.Story{}, fmt.Errorf("hn item %d unavailable", id)
	}

	return models.Story{
		HNID:         hn.ID,
		Title:        hn.Title,
		URL:          hn.URL,
		Text:         stripHTML(hn.Text),
		Author:       hn.By,
		Score:        hn.Score,
		CommentCount: hn.Descendants,
		PublishedAt:  time.Unix(hn.Time, 0).UTC(),
	}, nil
}

// arXiv fetcher (RSS)
type ArxivFetcher struct {
	FeedURLs []string
	rules    rules.PaperRules
}

func NewArxivFetcher(feeds []string, r *rules.Rules) *ArxivFetcher {
	return &ArxivFetcher{FeedURLs: feeds, rules: r.PaperCategories}
}

func (f *ArxivFetcher) Name() string { return models.SourceArxiv }

// Fetch 某个 feed 失败时继续抓取其余 feed，全部失败才返回错误
func (f *ArxivFetcher) Fetch(ctx context.Context) (Batch, error) {
	var (
		papers  []models.Paper
		lastErr error
		ok      int
	)
	seen := map[string]bool{}
	for _, url := range f.FeedURLs {
		entries, err := fetchRSS(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		ok++
		for _, e := range entries {
			if e.URL == "" || seen[e.URL] {
				continue
			}
			seen[e.URL] = true
			p := models.Paper{
				Title:       e.Title,
				Abstract:    e.Description,
				URL:         e.URL,
				Authors:     e.Author,
				PublishedAt: e.PublishedAt,
			}
			p.SetFlags(f.rules.Flags(rules.NewText(p.Title, p.Abstract)))
			papers = append(papers, p)
		}
	}
	if ok == 0 && lastErr != nil {
		return Batch{}, lastErr
	}
	return Batch{Papers: papers}, nil
}
