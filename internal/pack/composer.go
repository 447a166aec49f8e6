// Package pack 每日内容包：按主题从三类来源过采样，补充合成提示，
// 可选地用外部模型增强论文摘要，再按固定槽位交错成 12 条。
package pack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smerrill2/social-learning-app-sub001/internal/cache"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
	"github.com/smerrill2/social-learning-app-sub001/internal/summarizer"
)

// 每类来源的目标条数、过采样倍数与时间窗口
const (
	researchTarget = 6
	researchFactor = 2
	researchMaxAge = 14 * 24 * time.Hour

	linkTarget = 3
	linkFactor = 3
	linkMaxAge = 48 * time.Hour

	noteTarget = 3
	noteFactor = 3

	enrichConcurrency = 4
)

type Store interface {
	RecentNotes(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]models.Note, error)
	RecentStories(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Story, error)
	RecentPapers(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Paper, error)
}

type Options struct {
	CacheTTL        time.Duration
	SummaryCacheTTL time.Duration
	EnrichTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:        24 * time.Hour,
		SummaryCacheTTL: 7 * 24 * time.Hour,
		EnrichTimeout:   8 * time.Second,
	}
}

type Composer struct {
	store      Store
	cache      cache.Cache
	classifier *Classifier
	summarizer summarizer.Provider
	log        *logger.Logger
	metrics    *metrics.Metrics
	opts       Options
	now        func() time.Time
}

// NewComposer sum 可以为 nil，此时不做摘要增强
func NewComposer(store Store, c cache.Cache, classifier *Classifier, sum summarizer.Provider, log *logger.Logger, m *metrics.Metrics, opts Options) *Composer {
	return &Composer{
		store:      store,
		cache:      c,
		classifier: classifier,
		summarizer: sum,
		log:        log.With("service", "pack"),
		metrics:    m,
		opts:       opts,
		now:        time.Now,
	}
}

// GetDailyPack 同一天同一主题返回缓存；主题变化时重新生成并覆盖
func (c *Composer) GetDailyPack(ctx context.Context, userID uuid.UUID, topic string) (*models.DailyPack, error) {
	now := c.now()
	date := now.UTC().Format(time.DateOnly)
	t := c.classifier.Resolve(topic)

	key := cache.PackKey(userID, date)
	var cached models.DailyPack
	hit, err := cache.GetJSON(ctx, c.cache, key, &cached)
	c.metrics.RecordCache("pack", hit, err)
	if err != nil {
		c.log.Warn("pack cache read failed", "key", key, "error", err)
	}
	if hit && cached.Topic == t.Name {
		return &cached, nil
	}

	p, err := c.compose(ctx, userID, t, now)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.cache, key, p, c.opts.CacheTTL); err != nil {
		c.log.Warn("pack cache write failed", "key", key, "error", err)
	}
	return p, nil
}

type researchCandidate struct {
	paper models.Paper
	item  models.PackItem
}

func (c *Composer) compose(ctx context.Context, userID uuid.UUID, t Topic, now time.Time) (*models.DailyPack, error) {
	var (
		papers  []models.Paper
		stories []models.Story
		notes   []models.Note
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		papers, err = c.store.RecentPapers(gctx, now.Add(-researchMaxAge), t.Keywords, researchTarget*researchFactor)
		return err
	})
	g.Go(func() (err error) {
		stories, err = c.store.RecentStories(gctx, now.Add(-linkMaxAge), t.Keywords, linkTarget*linkFactor)
		return err
	})
	g.Go(func() (err error) {
		notes, err = c.store.RecentNotes(gctx, userID, t.Keywords, noteTarget*noteFactor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather pack sources: %w", err)
	}

	date := now.UTC().Format(time.DateOnly)
	seq := 0
	nextPrompt := func() models.PackItem {
		it := Prompt(t, date, seq)
		seq++
		return it
	}

	research := selectPapers(papers, t)
	c.enrich(ctx, research)
	researchItems := make([]models.PackItem, len(research))
	for i, r := range research {
		researchItems[i] = r.item
	}

	linkItems := selectStories(stories, t)

	noteItems := selectNotes(notes, t)
	for len(noteItems) < noteTarget {
		noteItems = append(noteItems, nextPrompt())
	}

	items := Interleave(map[models.PackSource][]models.PackItem{
		models.PackSourceResearch: researchItems,
		models.PackSourceLink:     linkItems,
		models.PackSourceNote:     noteItems,
	}, func(int) models.PackItem { return nextPrompt() })

	counts := map[string]int{}
	for _, it := range items {
		counts[string(it.Source)]++
	}
	c.metrics.RecordPack(counts)
	c.log.Debug("daily pack composed", "user_id", userID, "topic", t.Name, "research", counts["research"],
		"link", counts["link"], "note", counts["note"], "prompt", counts["prompt"])

	return &models.DailyPack{
		Date:        date,
		Topic:       t.Name,
		Items:       items,
		GeneratedAt: now,
	}, nil
}

// selectPapers 最新优先，按主题精确过滤后取前 6 条
func selectPapers(papers []models.Paper, t Topic) []researchCandidate {
	sort.SliceStable(papers, func(i, j int) bool { return papers[i].PublishedAt.After(papers[j].PublishedAt) })
	out := make([]researchCandidate, 0, researchTarget)
	for _, p := range papers {
		if len(out) == researchTarget {
			break
		}
		if t.Matches(p.Title, p.Abstract) {
			out = append(out, researchCandidate{paper: p, item: FromPaper(p, t)})
		}
	}
	return out
}

// selectStories 热度优先
func selectStories(stories []models.Story, t Topic) []models.PackItem {
	sort.SliceStable(stories, func(i, j int) bool { return stories[i].Score > stories[j].Score })
	out := make([]models.PackItem, 0, linkTarget)
	for _, s := range stories {
		if len(out) == linkTarget {
			break
		}
		if t.Matches(s.Title, s.Text) {
			out = append(out, FromStory(s, t))
		}
	}
	return out
}

func selectNotes(notes []models.Note, t Topic) []models.PackItem {
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	out := make([]models.PackItem, 0, noteTarget)
	for _, n := range notes {
		if len(out) == noteTarget {
			break
		}
		if t.Matches(append([]string{n.Content, n.Category}, n.Tags...)...) {
			out = append(out, FromNote(n, t))
		}
	}
	return out
}

// enrich 并发为论文生成摘要；单条失败或超时只记录日志，保留原摘要
func (c *Composer) enrich(ctx context.Context, items []researchCandidate) {
	if c.summarizer == nil || len(items) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range items {
		rc := &items[i]
		g.Go(func() error {
			if s, ok := c.summary(ctx, rc.paper); ok {
				applySummary(&rc.item, s)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Composer) summary(ctx context.Context, p models.Paper) (summarizer.Summary, bool) {
	key := cache.PaperSummaryKey(strconv.FormatUint(uint64(p.ID), 10))
	var s summarizer.Summary
	hit, err := cache.GetJSON(ctx, c.cache, key, &s)
	c.metrics.RecordCache("paper_summary", hit, err)
	if hit {
		return s, true
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.EnrichTimeout)
	defer cancel()
	s, err = c.summarizer.Summarize(callCtx, summarizer.Request{Title: p.Title, Abstract: p.Abstract, URL: p.URL})
	provider := s.Provider
	if provider == "" {
		provider = c.summarizer.Name()
	}
	c.metrics.RecordSummarizer(provider, err)
	if err != nil {
		if !errors.Is(err, summarizer.ErrNoProvider) {
			c.log.Warn("paper enrichment failed", "paper_id", p.ID, "error", err)
		}
		return summarizer.Summary{}, false
	}
	if err := cache.SetJSON(ctx, c.cache, key, s, c.opts.SummaryCacheTTL); err != nil {
		c.log.Warn("summary cache write failed", "key", key, "error", err)
	}
	return s, true
}

func applySummary(it *models.PackItem, s summarizer.Summary) {
	if s.Tldr != "" {
		it.Summary = clip(s.Tldr, MaxSummaryChars)
	}
	it.Paradigm = s.TopParadigm()
	it.MeritScore = s.MeritScore
}
