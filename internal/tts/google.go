package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/apresai/newsroom/internal/audio/wav"
)

const googleDefaultLanguage = "en-US"

// GoogleProvider synthesizes speech with Google Cloud TTS (Chirp 3 HD voices).
// It requests LINEAR16 at 24kHz and strips the WAV header the service adds, so
// callers get the same raw PCM as from the Gemini providers.
type GoogleProvider struct {
	client   *texttospeech.Client
	language string
}

func NewGoogleProvider(cfg ProviderConfig) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}

	lang := googleDefaultLanguage
	if cfg.Language != "" {
		lang = cfg.Language
	}

	return &GoogleProvider{client: client, language: lang}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	start := time.Now()
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.language,
			Name:         googleVoiceName(p.language, voice.ID),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(wav.DefaultFormat.SampleRate),
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Google TTS synthesize: %w", err)
	}

	_, pcm, err := wav.Decode(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("Google TTS audio: %w", err)
	}

	slog.DebugContext(ctx, "google tts synthesized",
		"chars", len(text), "pcm_bytes", len(pcm), "elapsed", time.Since(start).Round(time.Millisecond).String())
	return pcm, nil
}

// googleVoiceName expands a bare Gemini voice name ("Kore") into the matching
// Chirp 3 HD voice for the language ("en-US-Chirp3-HD-Kore"). Fully qualified
// names pass through.
func googleVoiceName(language, id string) string {
	if strings.Contains(id, "-") {
		return id
	}
	return language + "-Chirp3-HD-" + id
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "en-US-Chirp3-HD-Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice", DefaultFor: "short"},
		{ID: "en-US-Chirp3-HD-Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice", DefaultFor: "medium"},
		{ID: "en-US-Chirp3-HD-Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice", DefaultFor: "long"},
		{ID: "en-US-Chirp3-HD-Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "en-US-Chirp3-HD-Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "en-US-Chirp3-HD-Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "en-US-Chirp3-HD-Orus", Name: "Orus", Gender: "male", Description: "Warm, steady male narrator"},
		{ID: "en-US-Chirp3-HD-Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed female voice"},
	}
}
