// Package stages holds the five generators of a production run. Each one
// issues its turns through the run's conversational session and turns the
// reply into an artifact; none of them keeps state between calls.
package stages

import (
	"context"
	"log/slog"

	"github.com/apresai/newsroom/internal/imagegen"
	"github.com/apresai/newsroom/internal/ingest"
	"github.com/apresai/newsroom/internal/tts"
)

// SourceLoader resolves a theme into source material. It returns
// ingest.ErrPlainTopic when the theme is not a reference to a source.
type SourceLoader interface {
	Load(ctx context.Context, theme string) (*ingest.Content, error)
}

// Settings are the editorial constants of a publication.
type Settings struct {
	Persona  string // system instruction fixed for the whole session
	Lens     string // thematic lens the outline is analysed through
	Language string // language every artifact is written in
	CTA      string // call-to-action block appended to captions verbatim
}

// Config wires a Studio.
type Config struct {
	Speech   tts.Synthesizer
	Images   imagegen.Generator
	Sources  SourceLoader // optional
	Settings Settings
	Logger   *slog.Logger
}

// Studio runs the stage generators.
type Studio struct {
	speech   tts.Synthesizer
	images   imagegen.Generator
	sources  SourceLoader
	settings Settings
	logger   *slog.Logger
}

func NewStudio(cfg Config) *Studio {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Studio{
		speech:   cfg.Speech,
		images:   cfg.Images,
		sources:  cfg.Sources,
		settings: cfg.Settings.withDefaults(),
		logger:   logger,
	}
}

// SystemInstruction is the persona a run's session is created with.
func (s *Studio) SystemInstruction() string {
	return s.settings.Persona
}

func (st Settings) withDefaults() Settings {
	if st.Persona == "" {
		st.Persona = DefaultPersona
	}
	if st.Lens == "" {
		st.Lens = DefaultLens
	}
	if st.Language == "" {
		st.Language = DefaultLanguage
	}
	if st.CTA == "" {
		st.CTA = DefaultCTA
	}
	return st
}
