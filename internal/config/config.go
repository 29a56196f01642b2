// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chainsocial/scoring-service/internal/domain"
)

// Config is the root configuration for all binaries.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Quality  QualityConfig  `yaml:"quality"`
	Gibber   GibberConfig   `yaml:"gibberish"`
	Worker   WorkerConfig   `yaml:"worker"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type IndexConfig struct {
	// URL of the vector-store service. Empty selects the in-memory index.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type QualityConfig struct {
	ModelID    string        `yaml:"model_id"`
	Region     string        `yaml:"region"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	Budget     time.Duration `yaml:"budget"`
}

type GibberConfig struct {
	// ModelURL points at an optional external binary classifier. Empty
	// disables the ML signal; rule and statistical checks always run.
	ModelURL      string        `yaml:"model_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"min_confidence"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	ClaimBatch   int           `yaml:"claim_batch"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Visibility   time.Duration `yaml:"visibility"`
}

type WebhookConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AnalysisConfig struct {
	Interval time.Duration `yaml:"interval"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// ScoringConfig carries every tunable of the point system. Zero values are
// replaced by the compiled defaults in applyDefaults, so a partial YAML
// file only overrides what it names.
type ScoringConfig struct {
	Awards        map[domain.Category]float64 `yaml:"awards"`
	DailyLimits   map[domain.Category]int     `yaml:"daily_limits"`
	MonthlyCaps   map[domain.Category]float64 `yaml:"monthly_caps"`
	EmpathyWeight map[domain.Category]float64 `yaml:"empathy_weights"`

	QualityBonusMax     float64 `yaml:"quality_bonus_max"`
	OriginalityBonusMax float64 `yaml:"originality_bonus_max"`
	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`

	StreakWeight    float64 `yaml:"streak_weight"`
	EmpathyFraction float64 `yaml:"empathy_fraction"`

	OneTimeAwards map[domain.OneTimeEvent]float64 `yaml:"one_time_awards"`
}

// MaxMonthlyTotal is the sum of all monthly caps, the denominator of the
// normalized score.
func (s ScoringConfig) MaxMonthlyTotal() float64 {
	var sum float64
	for _, v := range s.MonthlyCaps {
		sum += v
	}
	return sum
}

// Load reads configuration from a YAML file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv builds configuration from environment variables, loading a
// .env file first if present.
func LoadFromEnv() *Config {
	godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", "postgres://localhost/scoring?sslmode=disable"),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Index: IndexConfig{
			URL: getEnv("VECTOR_INDEX_URL", ""),
		},
		Quality: QualityConfig{
			ModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
			Region:  getEnv("AWS_REGION", "us-east-1"),
		},
		Gibber: GibberConfig{
			ModelURL: getEnv("GIBBERISH_MODEL_URL", ""),
		},
		Worker: WorkerConfig{
			Count: getEnvInt("WORKER_COUNT", 4),
		},
		Webhook: WebhookConfig{
			MaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 5),
		},
		Analysis: AnalysisConfig{
			Interval: time.Duration(getEnvInt("ANALYSIS_INTERVAL_SECONDS", 86400)) * time.Second,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Index.Timeout == 0 {
		c.Index.Timeout = 10 * time.Second
	}
	if c.Quality.MaxRetries == 0 {
		c.Quality.MaxRetries = 3
	}
	if c.Quality.BaseDelay == 0 {
		c.Quality.BaseDelay = 2 * time.Second
	}
	if c.Quality.Budget == 0 {
		c.Quality.Budget = 60 * time.Second
	}
	if c.Gibber.Timeout == 0 {
		c.Gibber.Timeout = 10 * time.Second
	}
	if c.Gibber.MinConfidence == 0 {
		c.Gibber.MinConfidence = 0.85
	}
	if c.Worker.Count == 0 {
		c.Worker.Count = 4
	}
	if c.Worker.ClaimBatch == 0 {
		c.Worker.ClaimBatch = 10
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.MaxAttempts == 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.Visibility == 0 {
		c.Worker.Visibility = 5 * time.Minute
	}
	if c.Webhook.MaxRetries == 0 {
		c.Webhook.MaxRetries = 5
	}
	if c.Webhook.BaseDelay == 0 {
		c.Webhook.BaseDelay = 1 * time.Second
	}
	if c.Webhook.MaxDelay == 0 {
		c.Webhook.MaxDelay = 60 * time.Second
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Analysis.Interval == 0 {
		c.Analysis.Interval = 24 * time.Hour
	}
	if c.Analysis.LockTTL == 0 {
		c.Analysis.LockTTL = 10 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Scoring.applyDefaults()
}

func (s *ScoringConfig) applyDefaults() {
	if s.Awards == nil {
		s.Awards = map[domain.Category]float64{
			domain.CategoryPost:     0.5,
			domain.CategoryLike:     0.1,
			domain.CategoryComment:  0.1,
			domain.CategoryCrypto:   0.5,
			domain.CategoryTipping:  0.5,
			domain.CategoryReferral: 10,
		}
	}
	if s.DailyLimits == nil {
		s.DailyLimits = map[domain.Category]int{
			domain.CategoryPost:     2,
			domain.CategoryLike:     5,
			domain.CategoryComment:  5,
			domain.CategoryCrypto:   3,
			domain.CategoryTipping:  1,
			domain.CategoryReferral: 1,
		}
	}
	if s.MonthlyCaps == nil {
		s.MonthlyCaps = map[domain.Category]float64{
			domain.CategoryPost:     30,
			domain.CategoryLike:     15,
			domain.CategoryComment:  15,
			domain.CategoryCrypto:   20,
			domain.CategoryTipping:  20,
			domain.CategoryReferral: 10,
		}
	}
	if s.EmpathyWeight == nil {
		s.EmpathyWeight = map[domain.Category]float64{
			domain.CategoryPost:     0.25,
			domain.CategoryLike:     0.08,
			domain.CategoryComment:  0.08,
			domain.CategoryCrypto:   0.09,
			domain.CategoryTipping:  0.05,
			domain.CategoryReferral: 0.05,
		}
	}
	if s.QualityBonusMax == 0 {
		s.QualityBonusMax = 1.0
	}
	if s.OriginalityBonusMax == 0 {
		s.OriginalityBonusMax = 0.25
	}
	if s.DuplicateThreshold == 0 {
		s.DuplicateThreshold = 0.1
	}
	if s.StreakWeight == 0 {
		s.StreakWeight = 0.5
	}
	if s.EmpathyFraction == 0 {
		s.EmpathyFraction = 0.10
	}
	if s.OneTimeAwards == nil {
		s.OneTimeAwards = map[domain.OneTimeEvent]float64{
			domain.EventRegistration: 10,
			domain.EventVerification: 10,
		}
	}
}

// ParseLogLevel maps a config string to a logger level. Unknown values
// fall back to info.
func ParseLogLevel(s string) string {
	switch s {
	case "debug", "info", "warn", "error":
		return s
	}
	return "info"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
