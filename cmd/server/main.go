package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smerrill2/social-learning-app-sub001/internal/api"
	"github.com/smerrill2/social-learning-app-sub001/internal/cache"
	"github.com/smerrill2/social-learning-app-sub001/internal/config"
	"github.com/smerrill2/social-learning-app-sub001/internal/feed"
	"github.com/smerrill2/social-learning-app-sub001/internal/fetcher"
	"github.com/smerrill2/social-learning-app-sub001/internal/learning"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
	"github.com/smerrill2/social-learning-app-sub001/internal/normalizer"
	"github.com/smerrill2/social-learning-app-sub001/internal/pack"
	"github.com/smerrill2/social-learning-app-sub001/internal/rules"
	"github.com/smerrill2/social-learning-app-sub001/internal/store"
	"github.com/smerrill2/social-learning-app-sub001/internal/summarizer"
)

func main() {
	cfg, err := config.Load(envOr("CONFIG_FILE", "config.yaml"))
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	r, err := rules.Load(cfg.RulesFile)
	if err != nil {
		log.Fatal("failed to load rules", "error", err)
	}

	// 初始化数据库
	db, err := store.Open(cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}
	st := store.New(db, log)
	if err := st.Migrate(); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	c := newCache(cfg, log)
	m := metrics.New(prometheus.NewRegistry())

	feedSvc := feed.NewService(st, c, normalizer.New(r), log, m, feed.Options{
		CacheTTL:    cfg.Feed.CacheTTL,
		NoteLimit:   cfg.Feed.NoteLimit,
		StoryLimit:  cfg.Feed.StoryLimit,
		PaperLimit:  cfg.Feed.PaperLimit,
		StoryMaxAge: cfg.Feed.StoryMaxAge,
		PaperMaxAge: cfg.Feed.PaperMaxAge,
	})

	composer := pack.NewComposer(st, c, pack.NewClassifier(r), newSummarizer(cfg, log), log, m, pack.Options{
		CacheTTL:        cfg.Pack.CacheTTL,
		SummaryCacheTTL: cfg.Pack.SummaryCacheTTL,
		EnrichTimeout:   cfg.Pack.EnrichTimeout,
	})

	learningSvc := learning.NewService(st, log, learning.WithMetrics(m))
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := learningSvc.SeedAchievements(seedCtx, learning.Catalog(r)); err != nil {
		log.Fatal("failed to seed achievements", "error", err)
	}
	cancelSeed()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动定时抓取任务
	syncer := fetcher.NewSyncer(st, log, m,
		fetcher.NewHNFetcher(cfg.Sync.HNLimit),
		fetcher.NewArxivFetcher(cfg.Sync.ArxivFeeds, r),
	)
	if err := syncer.Start(ctx, cfg.Sync.Schedule); err != nil {
		log.Fatal("failed to start syncer", "error", err)
	}

	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), api.RequestLogger(log, m))
	api.NewHandler(feedSvc, composer, learningSvc, st, log, m).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server starting", "port", cfg.Port, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	syncer.Stop()
	if closer, ok := c.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn("failed to close cache", "error", err)
		}
	}
}

// newCache 配置了 Redis 就用 Redis，连接失败时退回进程内缓存
func newCache(cfg *config.Config, log *logger.Logger) cache.Cache {
	if cfg.Redis.Addr == "" {
		log.Info("using in-memory cache")
		return cache.NewMemory()
	}
	rc, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory cache", "addr", cfg.Redis.Addr, "error", err)
		return cache.NewMemory()
	}
	log.Info("using redis cache", "addr", cfg.Redis.Addr)
	return rc
}

// newSummarizer 只注册配置了 key 的 provider；一个都没有时返回 nil，内容包使用确定性摘要
func newSummarizer(cfg *config.Config, log *logger.Logger) summarizer.Provider {
	s := cfg.Summarizer
	var providers []summarizer.Weighted
	if s.GeminiAPIKey != "" {
		providers = append(providers, summarizer.Weighted{Provider: summarizer.NewGemini(s.GeminiAPIKey, s.GeminiModel, s.GeminiEndpoint), Weight: s.GeminiWeight})
	}
	if s.OpenAIAPIKey != "" {
		providers = append(providers, summarizer.Weighted{Provider: summarizer.NewOpenAI(s.OpenAIAPIKey, s.OpenAIBaseURL, s.OpenAIModel), Weight: s.OpenAIWeight})
	}
	if s.AnthropicAPIKey != "" {
		providers = append(providers, summarizer.Weighted{Provider: summarizer.NewAnthropic(s.AnthropicAPIKey, s.AnthropicModel), Weight: s.AnthropicWeight})
	}
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel := summarizer.NewSelector(seed, providers...)
	// 没有 key 或权重全为 0
	if !sel.Available() {
		log.Warn("no summarizer provider configured, daily pack uses extractive summaries")
		return nil
	}
	log.Info("summarizer providers configured", "count", len(providers))
	return sel
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
