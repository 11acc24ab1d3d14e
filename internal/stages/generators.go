package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apresai/newsroom/internal/audio"
	"github.com/apresai/newsroom/internal/audio/wav"
	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/imagegen"
	"github.com/apresai/newsroom/internal/ingest"
	"github.com/apresai/newsroom/internal/production"
)

// maxConcepts caps how many image prompts and titles are kept from a reply.
const maxConcepts = 3

type OutlineRequest struct {
	Brief production.Brief
	Notes string
}

type ScriptRequest struct {
	Outline  string
	Category production.Category
}

// ScriptResult is the narration text and its synthesized segments.
type ScriptResult struct {
	Script   string
	Segments []production.AudioSegment
}

// ImageBatch holds the rendered candidates and the fate of every prompt.
type ImageBatch struct {
	Candidates []production.ImageCandidate
	Outcomes   []production.ImageOutcome
}

type CaptionRequest struct {
	Title string
	Notes string
}

func send(ctx context.Context, s chat.Session, prompt string) (string, error) {
	out, err := s.Send(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", chat.ErrEmptyResponse
	}
	return out, nil
}

// Outline asks for the structured outline of the piece.
func (st *Studio) Outline(ctx context.Context, s chat.Session, req OutlineRequest) (string, error) {
	source := st.sourceExcerpt(ctx, req.Brief.Theme)
	prompt := outlinePrompt(req.Brief, st.settings.Lens, st.settings.Language, source, strings.TrimSpace(req.Notes))
	return send(ctx, s, prompt)
}

// sourceExcerpt ingests the theme when it names a URL or file. Failures fall
// back to using the theme as a plain topic.
func (st *Studio) sourceExcerpt(ctx context.Context, theme string) string {
	if st.sources == nil {
		return ""
	}
	c, err := st.sources.Load(ctx, theme)
	if err != nil {
		if !errors.Is(err, ingest.ErrPlainTopic) {
			st.logger.WarnContext(ctx, "source ingest failed, using theme as topic", "theme", theme, "error", err)
		}
		return ""
	}
	excerpt, cut := c.Excerpt(maxSourceWords)
	st.logger.InfoContext(ctx, "source ingested",
		"type", c.Type.String(), "title", c.Title, "words", c.WordCount, "truncated", cut)
	if c.Title != "" {
		excerpt = "Title: " + c.Title + "\n\n" + excerpt
	}
	return excerpt
}

// Script writes the narration and synthesizes it. Scripts over the split
// threshold become two segments; an empty part is not synthesized.
func (st *Studio) Script(ctx context.Context, s chat.Session, req ScriptRequest) (ScriptResult, error) {
	text, err := send(ctx, s, scriptPrompt(req.Outline, req.Category, st.settings.Language))
	if err != nil {
		return ScriptResult{}, err
	}
	if st.speech == nil {
		return ScriptResult{}, errors.New("no speech synthesizer configured")
	}

	voice := audio.VoiceFor(req.Category)
	parts := audio.Split(text)
	st.logger.InfoContext(ctx, "synthesizing narration",
		"words", audio.WordCount(text), "parts", len(parts), "voice", voice.ID, "provider", st.speech.Name())

	var segments []production.AudioSegment
	for i, part := range parts {
		speech := audio.SpeechText(part)
		if speech == "" {
			continue
		}
		start := time.Now()
		pcm, err := st.speech.Synthesize(ctx, speech, voice)
		if err != nil {
			return ScriptResult{}, fmt.Errorf("synthesize part %d/%d: %w", i+1, len(parts), err)
		}
		st.logger.InfoContext(ctx, "segment synthesized",
			"part", i+1, "pcm_bytes", len(pcm), "elapsed", time.Since(start).Round(time.Millisecond).String())
		segments = append(segments, production.AudioSegment{
			Index: len(segments),
			Text:  part,
			PCM:   pcm,
			WAV:   wav.Encode(pcm, wav.DefaultFormat),
		})
	}

	return ScriptResult{Script: text, Segments: segments}, nil
}

// Images asks for three cover concepts and renders each in both aspect
// ratios. Prompts are rendered one after another; the two renders of a prompt
// run concurrently. A prompt whose pair fails is recorded as skipped and does
// not consume a candidate id.
func (st *Studio) Images(ctx context.Context, s chat.Session, notes string) (ImageBatch, error) {
	reply, err := send(ctx, s, imagesPrompt(strings.TrimSpace(notes)))
	if err != nil {
		return ImageBatch{}, err
	}
	prompts, ok := ParseList(reply)
	if !ok {
		st.logger.WarnContext(ctx, "image concepts unparseable", "reply_chars", len(reply))
		return ImageBatch{}, nil
	}
	prompts = firstNonBlank(prompts, maxConcepts)
	if len(prompts) > 0 && st.images == nil {
		return ImageBatch{}, errors.New("no image generator configured")
	}

	var batch ImageBatch
	for _, prompt := range prompts {
		wide, tall, err := st.renderPair(ctx, prompt)
		if err != nil {
			st.logger.WarnContext(ctx, "image prompt skipped", "prompt", prompt, "error", err)
			batch.Outcomes = append(batch.Outcomes, production.ImageOutcome{
				Prompt:      prompt,
				Status:      production.OutcomeSkipped,
				CandidateID: -1,
				Reason:      err.Error(),
			})
			continue
		}
		id := len(batch.Candidates)
		batch.Candidates = append(batch.Candidates, production.ImageCandidate{
			ID:     id,
			Prompt: prompt,
			Wide:   wide,
			Tall:   tall,
		})
		batch.Outcomes = append(batch.Outcomes, production.ImageOutcome{
			Prompt:      prompt,
			Status:      production.OutcomeRendered,
			CandidateID: id,
		})
	}
	return batch, nil
}

func (st *Studio) renderPair(ctx context.Context, prompt string) (wide, tall []byte, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := st.images.Generate(gctx, prompt, imagegen.AspectWide)
		if err != nil {
			return fmt.Errorf("render %s: %w", imagegen.AspectWide, err)
		}
		wide = img
		return nil
	})
	g.Go(func() error {
		img, err := st.images.Generate(gctx, prompt, imagegen.AspectTall)
		if err != nil {
			return fmt.Errorf("render %s: %w", imagegen.AspectTall, err)
		}
		tall = img
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return wide, tall, nil
}

// Titles asks for three formatted title options.
func (st *Studio) Titles(ctx context.Context, s chat.Session, notes string) ([]string, error) {
	reply, err := send(ctx, s, titlesPrompt(st.settings.Language, strings.TrimSpace(notes)))
	if err != nil {
		return nil, err
	}
	titles, ok := ParseList(reply)
	if !ok {
		st.logger.WarnContext(ctx, "titles unparseable", "reply_chars", len(reply))
		return nil, nil
	}
	return firstNonBlank(titles, maxConcepts), nil
}

// Caption asks for the caption body and appends the call-to-action block
// exactly as configured.
func (st *Studio) Caption(ctx context.Context, s chat.Session, req CaptionRequest) (string, error) {
	body, err := send(ctx, s, captionPrompt(req.Title, st.settings.Language, strings.TrimSpace(req.Notes)))
	if err != nil {
		return "", err
	}
	body = stripCTA(body, st.settings.CTA)
	if body == "" {
		return "", chat.ErrEmptyResponse
	}
	return body + "\n\n" + st.settings.CTA, nil
}

// firstNonBlank trims the items, drops blanks and duplicates and keeps at most
// limit of them.
func firstNonBlank(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
