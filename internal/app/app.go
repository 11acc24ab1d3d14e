// Package app wires configuration into the backends, the stage generators
// and a state machine per run.
package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/config"
	"github.com/apresai/newsroom/internal/imagegen"
	"github.com/apresai/newsroom/internal/ingest"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/progress"
	"github.com/apresai/newsroom/internal/stages"
	"github.com/apresai/newsroom/internal/tts"
)

// App holds the long-lived clients shared by every run.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend chat.Backend
	speech  tts.Synthesizer
	studio  *stages.Studio
}

// New validates cfg and creates the chat backend, the speech synthesizer and
// the image generator.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chatCfg := cfg.ChatBackend()
	chatCfg.Logger = logger
	backend, err := chat.NewBackend(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("create chat backend: %w", err)
	}
	speech, err := tts.NewProvider(cfg.TTS.Provider, cfg.Speech())
	if err != nil {
		return nil, fmt.Errorf("create TTS provider: %w", err)
	}
	images, err := imagegen.NewGenerator(cfg.ImageGen())
	if err != nil {
		speech.Close()
		return nil, fmt.Errorf("create image generator: %w", err)
	}

	studio := stages.NewStudio(stages.Config{
		Speech:   speech,
		Images:   images,
		Sources:  ingest.Loader{},
		Settings: cfg.Settings(),
		Logger:   logger,
	})

	logger.Info("Newsroom ready",
		"chat", backend.Name(),
		"tts", speech.Name(),
		"images", images.Name(),
	)

	return &App{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		speech:  speech,
		studio:  studio,
	}, nil
}

// NewMachine starts a fresh run. Runs share clients but never sessions.
func (a *App) NewMachine(runID string, cb progress.Callback) *pipeline.Machine {
	return pipeline.New(pipeline.Options{
		RunID:      runID,
		Backend:    a.backend,
		Generators: a.studio,
		Progress:   cb,
		Logger:     a.logger,
	})
}

func (a *App) Close() error {
	return a.speech.Close()
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}
