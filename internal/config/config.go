package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Classifier providers
const (
	ClassifierKeyword = "keyword"
	ClassifierHTTP    = "http"
	ClassifierOpenAI  = "openai"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`

	ClassifierProvider  string  `env:"CLASSIFIER_PROVIDER" envDefault:"keyword"`
	ClassifierURL       string  `env:"CLASSIFIER_URL"`
	ConfidenceThreshold float64 `env:"CONFIDENCE_THRESHOLD" envDefault:"0.8"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	ClassifierModel string `env:"CLASSIFIER_MODEL" envDefault:"gpt-4o-mini"`
	NarratorModel   string `env:"NARRATOR_MODEL" envDefault:"gpt-4o-mini"`

	MaxHistory        int `env:"MAX_HISTORY" envDefault:"20"`
	PromptTokenBudget int `env:"PROMPT_TOKEN_BUDGET" envDefault:"1500"`

	WorkerCount int    `env:"WORKER_COUNT" envDefault:"4"`
	WorkerID    string `env:"WORKER_ID"`

	// SessionLockTTL must outlive TurnTimeout; locks are not refreshed mid-turn
	TurnTimeout    time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`
	SessionLockTTL time.Duration `env:"SESSION_LOCK_TTL" envDefault:"90s"`
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.ClassifierProvider = strings.ToLower(strings.TrimSpace(cfg.ClassifierProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	switch c.ClassifierProvider {
	case ClassifierKeyword:
	case ClassifierHTTP:
		if c.ClassifierURL == "" {
			return errors.New("CLASSIFIER_URL is required when CLASSIFIER_PROVIDER=http")
		}
	case ClassifierOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when CLASSIFIER_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", c.ClassifierProvider)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("MAX_HISTORY must be positive, got %d", c.MaxHistory)
	}
	if c.PromptTokenBudget < 1 {
		return fmt.Errorf("PROMPT_TOKEN_BUDGET must be positive, got %d", c.PromptTokenBudget)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TURN_TIMEOUT must be positive, got %s", c.TurnTimeout)
	}
	if c.SessionLockTTL <= c.TurnTimeout {
		return fmt.Errorf("SESSION_LOCK_TTL (%s) must exceed TURN_TIMEOUT (%s)", c.SessionLockTTL, c.TurnTimeout)
	}
	return nil
}

// NarratorEnabled reports whether narration can be generated
func (c *Config) NarratorEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
