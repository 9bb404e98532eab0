package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/internal/config"
)

func TestSetup_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithSession(WithRequestID(log, "r1"), "s1").Info("Turn processed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Turn processed", record["msg"])
	assert.Equal(t, "r1", record["request_id"])
	assert.Equal(t, "s1", record["session_id"])
}

func TestSetup_DevelopmentIsTextAndLevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("hidden")
	WithError(log, errors.New("redis down")).Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, `error="redis down"`), out)
}
