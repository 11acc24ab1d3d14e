// Package ingest turns a theme that points at a source (a web article, a PDF
// or a text file) into plain source material for the outline stage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

type SourceType string

const (
	SourceTopic SourceType = "topic"
	SourceURL   SourceType = "url"
	SourcePDF   SourceType = "pdf"
	SourceText  SourceType = "text"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024

	// DefaultExcerptWords bounds the source material handed to the model.
	DefaultExcerptWords = 6000
)

func (s SourceType) String() string {
	return string(s)
}

// ErrPlainTopic is returned by Load when the theme is a free-text topic rather
// than a reference to a source.
var ErrPlainTopic = errors.New("theme is a plain topic")

type Content struct {
	Text      string
	Title     string
	Source    string
	Type      SourceType
	WordCount int
}

// Excerpt returns the first maxWords words of the content, whitespace
// normalized, and whether it was cut.
func (c *Content) Excerpt(maxWords int) (string, bool) {
	words := strings.Fields(c.Text)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " "), false
	}
	return strings.Join(words[:maxWords], " "), true
}

type Ingester interface {
	Ingest(ctx context.Context, source string) (*Content, error)
}

// DetectSource classifies a theme. Anything that is not a URL, a .pdf path or
// an existing regular file is a plain topic.
func DetectSource(input string) SourceType {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if !strings.ContainsAny(input, " \n\t") {
			return SourceURL
		}
		return SourceTopic
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		return SourceText
	}
	return SourceTopic
}

func NewIngester(input string) Ingester {
	switch DetectSource(input) {
	case SourceURL:
		return &URLIngester{}
	case SourcePDF:
		return &PDFIngester{}
	default:
		return &TextIngester{}
	}
}

// Loader resolves themes into source material.
type Loader struct{}

// Load ingests the source a theme points at, or returns ErrPlainTopic.
func (Loader) Load(ctx context.Context, theme string) (*Content, error) {
	theme = strings.TrimSpace(theme)
	kind := DetectSource(theme)
	if kind == SourceTopic {
		return nil, ErrPlainTopic
	}
	c, err := NewIngester(theme).Ingest(ctx, theme)
	if err != nil {
		return nil, err
	}
	c.Type = kind
	return c, nil
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func titleFromText(text string, maxLen int) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
