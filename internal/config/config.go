package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Storage
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	DatabaseDSN string `env:"DATABASE_DSN"` // defaults to DATA_DIR/studydeck.db
	VectorDir   string `env:"VECTOR_DIR"`   // defaults to DATA_DIR/vectors

	// Redis answer cache and rate limiting. Both are off when RedisURL is empty.
	RedisURL        string        `env:"REDIS_URL"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"120"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	ChatCacheTTL    time.Duration `env:"CHAT_CACHE_TTL" envDefault:"24h"`

	// Auth
	StudydeckAPIKey string `env:"STUDYDECK_API_KEY"`

	// Claude
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`

	// Embeddings
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`

	// Worker pool
	WorkerCount      int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize     int `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	EmbedConcurrency int `env:"EMBED_CONCURRENCY" envDefault:"5"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"` // 50MB

	// Packing
	MinFragmentSize int `env:"MIN_FRAGMENT_SIZE" envDefault:"50"`
	TargetBlockSize int `env:"TARGET_BLOCK_SIZE" envDefault:"800"`

	// Generation
	ContextTokenBudget int `env:"CONTEXT_TOKEN_BUDGET" envDefault:"12000"`
	DefaultCardCount   int `env:"DEFAULT_CARD_COUNT" envDefault:"10"`
	MaxCardCount       int `env:"MAX_CARD_COUNT" envDefault:"50"`
	ChatTopK           int `env:"CHAT_TOP_K" envDefault:"5"`

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`

	// Sources
	PDFFallbackPdftotext bool   `env:"PDF_FALLBACK_PDFTOTEXT" envDefault:"true"`
	TranscriptLang       string `env:"TRANSCRIPT_LANG" envDefault:"en"`
}

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = filepath.Join(c.DataDir, "studydeck.db")
	}
	if c.VectorDir == "" {
		c.VectorDir = filepath.Join(c.DataDir, "vectors")
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 5
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.MinFragmentSize < 0 {
		c.MinFragmentSize = 50
	}
	if c.TargetBlockSize <= 0 {
		c.TargetBlockSize = 800
	}
	if c.DefaultCardCount <= 0 {
		c.DefaultCardCount = 10
	}
	if c.MaxCardCount < c.DefaultCardCount {
		c.MaxCardCount = c.DefaultCardCount
	}
	if c.ChatTopK <= 0 {
		c.ChatTopK = 5
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
}

func (c Config) Validate() error {
	if c.StudydeckAPIKey == "" {
		return errors.New("STUDYDECK_API_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return errors.New("ANTHROPIC_API_KEY is required")
	}
	return nil
}
