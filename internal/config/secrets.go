package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

type secretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets fills API keys that are still empty from AWS Secrets Manager,
// reading "<secret_prefix><ENV_NAME>". It does nothing without a prefix.
// Secrets that cannot be read are logged and skipped.
func LoadSecrets(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.SecretPrefix == "" {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return loadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg, logger)
}

func loadSecrets(ctx context.Context, client secretGetter, cfg *Config, logger *slog.Logger) error {
	secrets := []struct {
		env string
		dst *string
	}{
		{"GEMINI_API_KEY", &cfg.Keys.Gemini},
		{"ANTHROPIC_API_KEY", &cfg.Keys.Anthropic},
		{"OPENAI_API_KEY", &cfg.Keys.OpenAI},
	}

	for _, s := range secrets {
		if *s.dst != "" {
			continue
		}
		secretID := cfg.SecretPrefix + s.env
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			logger.InfoContext(ctx, "Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			*s.dst = *result.SecretString
			logger.InfoContext(ctx, "Loaded secret", "secret_id", secretID)
		}
	}
	return nil
}
