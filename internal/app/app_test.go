package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newsroom/internal/config"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/progress"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRunIDIsULID(t *testing.T) {
	a, err := NewRunID()
	require.NoError(t, err)
	b, err := NewRunID()
	require.NoError(t, err)

	_, err = ulid.Parse(a)
	require.NoError(t, err)
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	_, err := New(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestNewMachineStartsAtInput(t *testing.T) {
	cfg := config.Default()
	cfg.Keys.Gemini = "test-key"
	cfg.Images.Provider = "pollinations"

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	m1 := a.NewMachine("run-1", progress.NopCallback)
	m2 := a.NewMachine("run-2", nil)

	s := m1.Snapshot()
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, production.StageInput, s.Stage)
	assert.Equal(t, production.StatusIdle, s.Status.Kind)
	assert.Empty(t, s.SessionID)
	assert.Equal(t, "run-2", m2.Snapshot().RunID)
}
