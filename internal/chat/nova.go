package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
	"nova-pro":  "us.amazon.nova-pro-v1:0",
}

// NovaBackend talks to Amazon Nova through the Bedrock Converse API.
type NovaBackend struct {
	model     string
	maxTokens int32
	client    *bedrockruntime.Client
	logger    *slog.Logger
}

func NewNovaBackend(ctx context.Context, cfg Config) (*NovaBackend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	return &NovaBackend{
		model:     resolveModel(novaModels, cfg.Model, "nova-lite"),
		maxTokens: int32(cfg.MaxTokens),
		client:    bedrockruntime.NewFromConfig(awsCfg),
		logger:    cfg.Logger,
	}, nil
}

func (n *NovaBackend) Name() string { return "nova" }

func (n *NovaBackend) NewSession(_ context.Context, systemInstruction string) (Session, error) {
	return newSession(n.Name(), systemInstruction, n, n.logger), nil
}

func (n *NovaBackend) complete(ctx context.Context, system string, history []Turn) (string, error) {
	msgs := make([]types.Message, 0, len(history))
	for _, t := range history {
		role := types.ConversationRoleUser
		if t.Role == RoleModel {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: t.Text}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(n.model),
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(n.maxTokens),
			Temperature: aws.Float32(temperature),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}

	resp, err := n.client.Converse(ctx, input)
	if err != nil {
		return "", novaError(fmt.Errorf("Bedrock Converse: %w", err))
	}
	return extractNovaText(resp), nil
}

// novaError classifies a Converse failure by the HTTP status of the AWS
// response error it wraps.
func novaError(err error) error {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return statusError(re.HTTPStatusCode(), err)
	}
	return transportError(err)
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var out string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			out += tb.Value
		}
	}
	return out
}
