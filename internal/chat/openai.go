package chat

import (
	"context"
	"errors"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend talks to the OpenAI chat completions API.
type OpenAIBackend struct {
	model     string
	maxTokens int64
	client    openai.Client
	logger    *slog.Logger
}

func NewOpenAIBackend(cfg Config) *OpenAIBackend {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &OpenAIBackend{
		model:     model,
		maxTokens: int64(cfg.MaxTokens),
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		logger:    cfg.Logger,
	}
}

func (o *OpenAIBackend) Name() string { return "openai" }

func (o *OpenAIBackend) NewSession(_ context.Context, systemInstruction string) (Session, error) {
	return newSession(o.Name(), systemInstruction, o, o.logger), nil
}

func (o *OpenAIBackend) complete(ctx context.Context, system string, history []Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, t := range history {
		if t.Role == RoleModel {
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(t.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            msgs,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.StatusCode, err)
		}
		return "", transportError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
