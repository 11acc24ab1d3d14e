package imagegen

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"time"
)

const pollinationsDefaultBaseURL = "https://image.pollinations.ai/prompt/"

// Pollinations renders images with the keyless Pollinations.ai endpoint.
type Pollinations struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewPollinations(cfg Config) *Pollinations {
	model := "flux"
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Pollinations{
		model:      model,
		baseURL:    pollinationsDefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Pollinations) Name() string { return "pollinations" }

// Generate fetches one image. The seed is derived from the prompt so the wide
// and tall renders of one concept come from the same seed.
func (p *Pollinations) Generate(ctx context.Context, prompt string, aspect Aspect) ([]byte, error) {
	w, h := aspect.Size()
	imageURL := fmt.Sprintf("%s%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		p.baseURL, url.PathEscape(prompt), w, h, url.QueryEscape(p.model), seedFor(prompt))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newsroom/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from Pollinations", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// Error pages come back as tiny HTML bodies with status 200.
	if len(data) < 100 {
		return nil, fmt.Errorf("response too small (%d bytes), likely an error", len(data))
	}
	return data, nil
}

func seedFor(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32() % 1000000
}
