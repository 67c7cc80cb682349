package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Level(t *testing.T) {
	log := NewLogger("warn", "json")
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewLogger("chatty", "text")
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}
