package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config 服务配置：可来自 config.yaml，环境变量优先
type Config struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
	Mode string `yaml:"mode" env:"APP_MODE" env-default:"dev"`

	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Sync       SyncConfig       `yaml:"sync"`
	Feed       FeedConfig       `yaml:"feed"`
	Pack       PackConfig       `yaml:"pack"`

	// RulesFile 可选，覆盖内置的关键词/成就规则表
	RulesFile string `yaml:"rules_file" env:"RULES_FILE" env-default:""`
}

type DatabaseConfig struct {
	URL      string `yaml:"-" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password string `yaml:"-" env:"PGPASSWORD" env-default:"postgres"`
	Name     string `yaml:"name" env:"PGDATABASE" env-default:"social_learning"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DSN DATABASE_URL 优先，否则由各字段拼接
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// RedisConfig Addr 为空时使用进程内缓存
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"-" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type SummarizerConfig struct {
	Seed int64 `yaml:"seed" env:"SUMMARIZER_SEED" env-default:"0"`

	GeminiAPIKey   string  `yaml:"-" env:"GEMINI_API_KEY"`
	GeminiModel    string  `yaml:"gemini_model" env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	GeminiEndpoint string  `yaml:"gemini_endpoint" env:"GEMINI_API_ENDPOINT" env-default:"https://generativelanguage.googleapis.com"`
	GeminiWeight   float64 `yaml:"gemini_weight" env:"GEMINI_WEIGHT" env-default:"1"`

	OpenAIAPIKey  string  `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string  `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIModel   string  `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIWeight  float64 `yaml:"openai_weight" env:"OPENAI_WEIGHT" env-default:"1"`

	AnthropicAPIKey string  `yaml:"-" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string  `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	AnthropicWeight float64 `yaml:"anthropic_weight" env:"ANTHROPIC_WEIGHT" env-default:"1"`
}

type SyncConfig struct {
	Schedule   string   `yaml:"schedule" env:"SYNC_SCHEDULE" env-default:"@hourly"`
	HNLimit    int      `yaml:"hn_limit" env:"SYNC_HN_LIMIT" env-default:"30"`
	ArxivFeeds []string `yaml:"arxiv_feeds" env:"SYNC_ARXIV_FEEDS" env-separator:"," env-default:"https://rss.arxiv.org/rss/cs.AI,https://rss.arxiv.org/rss/q-bio.NC"`
}

type FeedConfig struct {
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"FEED_CACHE_TTL" env-default:"15m"`
	NoteLimit   int           `yaml:"note_limit" env:"FEED_NOTE_LIMIT" env-default:"50"`
	StoryLimit  int           `yaml:"story_limit" env:"FEED_STORY_LIMIT" env-default:"100"`
	PaperLimit  int           `yaml:"paper_limit" env:"FEED_PAPER_LIMIT" env-default:"50"`
	StoryMaxAge time.Duration `yaml:"story_max_age" env:"FEED_STORY_MAX_AGE" env-default:"168h"`
	PaperMaxAge time.Duration `yaml:"paper_max_age" env:"FEED_PAPER_MAX_AGE" env-default:"720h"`
}

type PackConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"PACK_CACHE_TTL" env-default:"24h"`
	SummaryCacheTTL time.Duration `yaml:"summary_cache_ttl" env:"PACK_SUMMARY_CACHE_TTL" env-default:"168h"`
	EnrichTimeout   time.Duration `yaml:"enrich_timeout" env:"PACK_ENRICH_TIMEOUT" env-default:"8s"`
}

// Load 读取配置文件（不存在时只读环境变量）并校验
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	s := c.Summarizer
	if s.GeminiWeight < 0 || s.OpenAIWeight < 0 || s.AnthropicWeight < 0 {
		return fmt.Errorf("summarizer weights must be >= 0")
	}
	if c.Feed.CacheTTL <= 0 || c.Pack.CacheTTL <= 0 || c.Pack.SummaryCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Pack.EnrichTimeout <= 0 {
		return fmt.Errorf("pack enrich timeout must be positive")
	}
	return nil
}
