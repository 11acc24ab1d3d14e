package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// GeminiBackend talks to the AI Studio generateContent REST API.
type GeminiBackend struct {
	model      string
	apiKey     string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGeminiBackend(cfg Config) *GeminiBackend {
	return &GeminiBackend{
		model:     resolveModel(geminiModels, cfg.Model, "gemini-flash"),
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		baseURL:   geminiDefaultBaseURL,
		logger:    cfg.Logger,
		httpClient: &http.Client{
			Timeout:   180 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) NewSession(_ context.Context, systemInstruction string) (Session, error) {
	return newSession(g.Name(), systemInstruction, g, g.logger), nil
}

type geminiTextRequest struct {
	SystemInstruction *geminiTextContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiTextContent `json:"contents"`
	GenerationConfig  *geminiTextGenCfg   `json:"generationConfig,omitempty"`
}

type geminiTextContent struct {
	Role  string           `json:"role,omitempty"`
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiTextGenCfg struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiTextResponse struct {
	Candidates []struct {
		Content geminiTextContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiBackend) complete(ctx context.Context, system string, history []Turn) (string, error) {
	reqBody := geminiTextRequest{
		GenerationConfig: &geminiTextGenCfg{
			Temperature:     temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &geminiTextContent{
			Parts: []geminiTextPart{{Text: system}},
		}
	}
	for _, t := range history {
		role := "user"
		if t.Role == RoleModel {
			role = "model"
		}
		reqBody.Contents = append(reqBody.Contents, geminiTextContent{
			Role:  role,
			Parts: []geminiTextPart{{Text: t.Text}},
		})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := g.baseURL + g.model + ":generateContent?key=" + g.apiKey

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", transportError(fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return "", statusError(res.StatusCode, fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(errBody)))
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp geminiTextResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var out string
	for _, p := range resp.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out, nil
}
