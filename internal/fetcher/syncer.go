package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// Sink 抓取结果的落库目标
type Sink interface {
	UpsertStories(ctx context.Context, stories []models.Story) error
	UpsertPapers(ctx context.Context, papers []models.Paper) error
}

// Syncer 定时执行所有 fetcher；单个 fetcher 失败不影响其他
type Syncer struct {
	fetchers []Fetcher
	sink     Sink
	log      *logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	wg      sync.WaitGroup
}

func NewSyncer(sink Sink, log *logger.Logger, m *metrics.Metrics, fetchers ...Fetcher) *Syncer {
	return &Syncer{
		fetchers: fetchers,
		sink:     sink,
		log:      log.With("service", "sync"),
		metrics:  m,
		timeout:  10 * time.Minute,
	}
}

// RunOnce 执行一轮抓取；上一轮未结束时跳过
func (s *Syncer) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("sync already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Info("starting fetch job")
	for _, f := range s.fetchers {
		n, err := s.runFetcher(ctx, f)
		s.metrics.RecordSync(f.Name(), n, err)
		if err != nil {
			s.log.Error("fetch failed", "fetcher", f.Name(), "error", err)
			continue
		}
		s.log.Info("fetched items", "fetcher", f.Name(), "count", n)
	}
	s.log.Info("fetch job completed")
}

func (s *Syncer) runFetcher(ctx context.Context, f Fetcher) (int, error) {
	batch, err := f.Fetch(ctx)
	if err != nil && batch.Len() == 0 {
		return 0, err
	}
	if err != nil {
		s.log.Warn("partial fetch", "fetcher", f.Name(), "count", batch.Len(), "error", err)
	}
	if len(batch.Stories) > 0 {
		if err := s.sink.UpsertStories(ctx, batch.Stories); err != nil {
			return 0, fmt.Errorf("save stories: %w", err)
		}
	}
	if len(batch.Papers) > 0 {
		if err := s.sink.UpsertPapers(ctx, batch.Papers); err != nil {
			return 0, fmt.Errorf("save papers: %w", err)
		}
	}
	return batch.Len(), nil
}

// Start 启动时先执行一次，然后按 cron 表达式定时执行
func (s *Syncer) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
	c.Start()
	s.log.Info("sync scheduled", "schedule", schedule)
	return nil
}

// Stop 停止调度，并等待启动时那一轮和正在执行的定时任务结束
func (s *Syncer) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}
