package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	imagenDefaultModel   = "imagen-4.0-generate-001"
	imagenDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"
)

// Imagen renders images with the Imagen predict endpoint of the Gemini API.
type Imagen struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewImagen(cfg Config) *Imagen {
	model := imagenDefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Imagen{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: imagenDefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *Imagen) Name() string { return "imagen" }

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount   int                 `json:"sampleCount"`
	AspectRatio   string              `json:"aspectRatio"`
	OutputOptions imagenOutputOptions `json:"outputOptions"`
}

type imagenOutputOptions struct {
	MimeType string `json:"mimeType"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (g *Imagen) Generate(ctx context.Context, prompt string, aspect Aspect) ([]byte, error) {
	bodyBytes, err := json.Marshal(imagenRequest{
		Instances: []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{
			SampleCount:   1,
			AspectRatio:   string(aspect),
			OutputOptions: imagenOutputOptions{MimeType: "image/jpeg"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal Imagen request: %w", err)
	}

	url := g.baseURL + g.model + ":predict?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send Imagen request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("Imagen API error (status %d): %s", res.StatusCode, string(errBody))
	}

	var resp imagenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse Imagen response: %w", err)
	}
	// Prompts rejected by the safety filter come back with no predictions.
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, errors.New("Imagen returned no image")
	}

	img, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("decode Imagen image: %w", err)
	}
	return img, nil
}
