// Package chat provides long-lived conversational sessions over the supported
// text-generation backends. A session keeps its own transcript; every Send is
// answered in the context of all earlier exchanges.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a session transcript.
type Turn struct {
	Role Role
	Text string
}

// Session is one ongoing dialogue with a backend.
type Session interface {
	ID() string
	Send(ctx context.Context, message string) (string, error)
}

// Backend creates sessions that share a system instruction for their whole
// lifetime.
type Backend interface {
	Name() string
	NewSession(ctx context.Context, systemInstruction string) (Session, error)
}

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// RetryableError marks a failed turn that may succeed when sent again: a
// 429, a 5xx or a transport failure with no status at all.
type RetryableError struct {
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// statusError wraps err as retryable when code is. Other statuses are
// permanent and returned unchanged.
func statusError(code int, err error) error {
	if retryableStatus(code) {
		return &RetryableError{StatusCode: code, Err: err}
	}
	return err
}

// transportError marks a request that never got a response. Cancellation is
// never retried.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &RetryableError{Err: err}
}

func shouldRetry(err error) bool {
	var re *RetryableError
	return errors.Is(err, ErrEmptyResponse) || errors.As(err, &re)
}

const (
	temperature    = 0.7
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	backoffMult    = 2
)

// completer sends the whole transcript to a backend and returns the reply.
type completer interface {
	complete(ctx context.Context, system string, history []Turn) (string, error)
}

// session is the transcript-keeping Session shared by every backend.
type session struct {
	id      string
	backend string
	system  string
	c       completer
	logger  *slog.Logger
	backoff time.Duration

	mu      sync.Mutex
	history []Turn
}

func newSession(backend, system string, c completer, logger *slog.Logger) *session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &session{
		id:      id,
		backend: backend,
		system:  system,
		c:       c,
		logger:  logger.With("session", id, "backend", backend),
		backoff: initialBackoff,
	}
}

func (s *session) ID() string { return s.id }

// Send appends message to the transcript and returns the model's reply. The
// exchange is recorded only when the backend answers, so a failed Send can be
// repeated without leaving a dangling user turn. Only rate limits, server
// errors, transport failures and empty replies are retried.
func (s *session) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]Turn, len(s.history), len(s.history)+1)
	copy(history, s.history)
	history = append(history, Turn{Role: RoleUser, Text: message})

	start := time.Now()
	var (
		reply   string
		lastErr error
	)
	backoff := s.backoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, err := s.c.complete(ctx, s.system, history)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			reply = text
			lastErr = nil
			break
		}

		lastErr = fmt.Errorf("%s (attempt %d/%d): %w", s.backend, attempt, maxRetries, err)
		if !shouldRetry(err) {
			s.logger.WarnContext(ctx, "chat turn failed", "attempt", attempt, "error", err)
			break
		}
		s.logger.WarnContext(ctx, "chat turn failed, retrying", "attempt", attempt, "error", err)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(backoffMult)
		}
	}
	if lastErr != nil {
		return "", lastErr
	}

	s.history = append(history, Turn{Role: RoleModel, Text: reply})
	s.logger.DebugContext(ctx, "chat turn",
		"turns", len(s.history),
		"reply_chars", len(reply),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return reply, nil
}

// Config selects and configures a backend.
type Config struct {
	Provider  string // gemini, claude, openai, nova
	Model     string // alias or full model id; empty picks the provider default
	APIKey    string
	MaxTokens int
	Logger    *slog.Logger
}

// ProviderNames lists the accepted backend names.
func ProviderNames() []string {
	return []string{"gemini", "claude", "openai", "nova"}
}

// NewBackend creates the named backend.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini chat requires GEMINI_API_KEY")
		}
		return NewGeminiBackend(cfg), nil
	case "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude chat requires ANTHROPIC_API_KEY")
		}
		return NewClaudeBackend(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai chat requires OPENAI_API_KEY")
		}
		return NewOpenAIBackend(cfg), nil
	case "nova":
		return NewNovaBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown chat provider %q: choose gemini, claude, openai, or nova", cfg.Provider)
	}
}

func resolveModel(aliases map[string]string, model, fallback string) string {
	if model == "" {
		return aliases[fallback]
	}
	if id, ok := aliases[model]; ok {
		return id
	}
	return model
}
