// Package imagegen renders cover images from text prompts.
package imagegen

import (
	"context"
	"fmt"
)

// Aspect is an output aspect ratio.
type Aspect string

const (
	AspectWide Aspect = "16:9"
	AspectTall Aspect = "9:16"
)

// Size returns the pixel dimensions used for an aspect ratio.
func (a Aspect) Size() (width, height int) {
	if a == AspectTall {
		return 1080, 1920
	}
	return 1920, 1080
}

// Generator renders one JPEG image for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, aspect Aspect) ([]byte, error)
}

// Config selects and configures an image provider.
type Config struct {
	Provider string // imagen, pollinations
	APIKey   string
	Model    string
}

// ProviderNames lists the accepted provider names.
func ProviderNames() []string {
	return []string{"imagen", "pollinations"}
}

// NewGenerator creates the named image provider.
func NewGenerator(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "imagen":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("imagen requires GEMINI_API_KEY")
		}
		return NewImagen(cfg), nil
	case "pollinations":
		return NewPollinations(cfg), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q: choose imagen or pollinations", cfg.Provider)
	}
}
