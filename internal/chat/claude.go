package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

// ClaudeBackend talks to the Anthropic Messages API.
type ClaudeBackend struct {
	model     string
	maxTokens int64
	client    anthropic.Client
	logger    *slog.Logger
}

func NewClaudeBackend(cfg Config) *ClaudeBackend {
	return &ClaudeBackend{
		model:     resolveModel(claudeModels, cfg.Model, "sonnet"),
		maxTokens: int64(cfg.MaxTokens),
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		logger:    cfg.Logger,
	}
}

func (c *ClaudeBackend) Name() string { return "claude" }

func (c *ClaudeBackend) NewSession(_ context.Context, systemInstruction string) (Session, error) {
	return newSession(c.Name(), systemInstruction, c, c.logger), nil
}

func (c *ClaudeBackend) complete(ctx context.Context, system string, history []Turn) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		if t.Role == RoleModel {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages:    msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.StatusCode, err)
		}
		return "", transportError(err)
	}

	var parts []string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, ""), nil
}
