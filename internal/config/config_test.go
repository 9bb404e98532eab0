package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ClassifierKeyword, cfg.ClassifierProvider)
	assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
	assert.Equal(t, 20, cfg.MaxHistory)
	assert.Equal(t, 1500, cfg.PromptTokenBudget)
	assert.Equal(t, 60*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 90*time.Second, cfg.SessionLockTTL)
	assert.Greater(t, cfg.SessionLockTTL, cfg.TurnTimeout, "a lock outlives the turn it guards")
	assert.False(t, cfg.NarratorEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CLASSIFIER_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAX_HISTORY", "30")
	t.Setenv("SESSION_LOCK_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, ClassifierOpenAI, cfg.ClassifierProvider)
	assert.Equal(t, 30, cfg.MaxHistory)
	assert.Equal(t, 2*time.Minute, cfg.SessionLockTTL)
	assert.True(t, cfg.NarratorEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"http without url", map[string]string{"CLASSIFIER_PROVIDER": "http"}},
		{"openai without key", map[string]string{"CLASSIFIER_PROVIDER": "openai"}},
		{"unknown provider", map[string]string{"CLASSIFIER_PROVIDER": "magic"}},
		{"threshold out of range", map[string]string{"CONFIDENCE_THRESHOLD": "1.5"}},
		{"zero history", map[string]string{"MAX_HISTORY": "0"}},
		{"not a number", map[string]string{"MAX_HISTORY": "many"}},
		{"lock ttl equal to turn timeout", map[string]string{"SESSION_LOCK_TTL": "60s"}},
		{"lock ttl below turn timeout", map[string]string{"SESSION_LOCK_TTL": "2m", "TURN_TIMEOUT": "3m"}},
		{"zero turn timeout", map[string]string{"TURN_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
