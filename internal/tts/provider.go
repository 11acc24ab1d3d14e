package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// Synthesizer turns narration text into raw 16-bit mono 24kHz PCM samples.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
	Close() error
}

// ProviderConfig carries the optional settings shared by the providers.
type ProviderConfig struct {
	APIKey   string // AI Studio key (gemini)
	Model    string // TTS model override
	Project  string // GCP project (gemini-vertex)
	Region   string // GCP region (gemini-vertex)
	Language string // BCP-47 language code (google)
}

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Description string
	DefaultFor  string // category the voice narrates by default, or ""
}

// ProviderNames lists the accepted provider names.
func ProviderNames() []string {
	return []string{"gemini", "gemini-vertex", "google"}
}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "gemini", "gemini-vertex":
		return geminiAvailableVoices(), nil
	case "google":
		return googleAvailableVoices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // server-requested wait, 0 when absent
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			wait := backoff
			if re.RetryAfter > wait {
				wait = re.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// NewProvider creates a speech synthesizer by name.
func NewProvider(name string, cfg ProviderConfig) (Synthesizer, error) {
	switch name {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini TTS requires GEMINI_API_KEY")
		}
		return NewGeminiProvider(cfg), nil
	case "gemini-vertex":
		return NewVertexProvider(cfg)
	case "google":
		return NewGoogleProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose gemini, gemini-vertex, or google", name)
	}
}
