package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
)

// VertexProvider synthesizes speech with Gemini TTS through Vertex AI
// (aiplatform.googleapis.com). Voices and request format match AI Studio;
// authentication uses Application Default Credentials.
type VertexProvider struct {
	project    string
	region     string
	model      string
	endpoint   string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

func NewVertexProvider(cfg ProviderConfig) (*VertexProvider, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("GCP_PROJECT is required for the gemini-vertex TTS provider")
	}

	model := vertexDefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	region := vertexDefaultRegion
	if cfg.Region != "" {
		region = cfg.Region
	}

	p := &VertexProvider{
		project: cfg.Project,
		region:  region,
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 4 * time.Minute,
				IdleConnTimeout:       10 * time.Second,
				DisableKeepAlives:     true,
			},
		},
	}
	p.endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		p.region, p.project, p.region, p.model)
	return p, nil
}

func (p *VertexProvider) Name() string { return "gemini-vertex" }

// getAccessToken obtains an OAuth2 token via Application Default Credentials.
// The token source is created on first use and reused; it caches and refreshes
// tokens itself.
func (p *VertexProvider) getAccessToken(ctx context.Context) (string, error) {
	if p.tokens == nil {
		ts, err := google.DefaultTokenSource(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("get default token source: %w (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
		}
		p.tokens = oauth2.ReuseTokenSource(nil, ts)
	}
	token, err := p.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("get access token: %w", err)
	}
	return token.AccessToken, nil
}

// Synthesize does single-speaker synthesis of the whole text.
func (p *VertexProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	req := newGeminiSpeechRequest(text, voice)

	var pcm []byte
	err := WithRetry(ctx, func() error {
		data, err := p.doRequest(ctx, req)
		if err != nil {
			return err
		}
		pcm = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pcm, nil
}

func (p *VertexProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal Vertex request: %w", err)
	}

	token, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	slog.DebugContext(ctx, "vertex tts request", "model", p.model, "request_bytes", len(bodyBytes))
	start := time.Now()

	res, err := p.httpClient.Do(req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return nil, &RetryableError{StatusCode: 0, Body: fmt.Sprintf("network error after %s: %v", elapsed, err)}
	}
	defer res.Body.Close()

	slog.DebugContext(ctx, "vertex tts response", "status", res.StatusCode, "elapsed", elapsed.String())

	data, err := decodeSpeechResponse(res)
	if re, ok := err.(*RetryableError); ok && res.StatusCode == http.StatusTooManyRequests {
		if secs, parseErr := strconv.Atoi(res.Header.Get("Retry-After")); parseErr == nil && secs > 0 {
			re.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return data, err
}

func (p *VertexProvider) Close() error { return nil }
