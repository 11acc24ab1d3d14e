package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/stages"
)

type fakeSession struct{ id string }

func (s *fakeSession) ID() string                                   { return s.id }
func (s *fakeSession) Send(context.Context, string) (string, error) { return "ok", nil }

type fakeBackend struct{ n int }

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) NewSession(context.Context, string) (chat.Session, error) {
	b.n++
	return &fakeSession{id: fmt.Sprintf("session-%d", b.n)}, nil
}

// fakeGenerators returns canned artifacts. emptyImages and emptyTitles make
// the first N batches come back empty.
type fakeGenerators struct {
	mu          sync.Mutex
	emptyImages int
	emptyTitles int
	notes       []string
}

func (g *fakeGenerators) SystemInstruction() string { return "persona" }

func (g *fakeGenerators) Outline(_ context.Context, _ chat.Session, req stages.OutlineRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req.Notes != "" {
		g.notes = append(g.notes, req.Notes)
		return "# Revised outline", nil
	}
	return "# Outline of " + req.Brief.Theme, nil
}

func (g *fakeGenerators) Script(context.Context, chat.Session, stages.ScriptRequest) (stages.ScriptResult, error) {
	return stages.ScriptResult{
		Script:   "one two three four",
		Segments: []production.AudioSegment{{Index: 0, Text: "one two three four", PCM: make([]byte, 96000)}},
	}, nil
}

func (g *fakeGenerators) Images(_ context.Context, _ chat.Session, notes string) (stages.ImageBatch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if notes != "" {
		g.notes = append(g.notes, notes)
	}
	if g.emptyImages > 0 {
		g.emptyImages--
		return stages.ImageBatch{Outcomes: []production.ImageOutcome{
			{Prompt: "x", Status: production.OutcomeSkipped, CandidateID: -1, Reason: "render failed"},
		}}, nil
	}
	return stages.ImageBatch{Candidates: []production.ImageCandidate{
		{ID: 0, Prompt: "harbor at dawn"}, {ID: 1, Prompt: "empty reservoir"},
	}}, nil
}

func (g *fakeGenerators) Titles(context.Context, chat.Session, string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.emptyTitles > 0 {
		g.emptyTitles--
		return nil, nil
	}
	return []string{"DRY TAPS | who pays | #water", "SECOND | b | #y"}, nil
}

func (g *fakeGenerators) Caption(_ context.Context, _ chat.Session, req stages.CaptionRequest) (string, error) {
	return "Caption for " + req.Title, nil
}

func newTestMachine(gen pipeline.Generators) *pipeline.Machine {
	return pipeline.New(pipeline.Options{
		RunID:      "run-test",
		Backend:    &fakeBackend{},
		Generators: gen,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var testBrief = production.Brief{Theme: "water rights", Category: production.CategoryShort, AnalyticalLine: "who pays"}

func TestAutopilotRunsToDone(t *testing.T) {
	m := newTestMachine(&fakeGenerators{})
	require.NoError(t, autopilot(context.Background(), m, testBrief, 2))

	s := m.Snapshot()
	assert.Equal(t, production.StageDone, s.Stage)
	require.NotNil(t, s.SelectedImageID)
	assert.Equal(t, 0, *s.SelectedImageID)
	require.NotNil(t, s.SelectedTitle)
	assert.Equal(t, "DRY TAPS | who pays | #water", *s.SelectedTitle)
	assert.Equal(t, "Caption for DRY TAPS | who pays | #water", s.Caption)
}

func TestAutopilotRevisesEmptyBatches(t *testing.T) {
	gen := &fakeGenerators{emptyImages: 1, emptyTitles: 2}
	m := newTestMachine(gen)
	require.NoError(t, autopilot(context.Background(), m, testBrief, 2))
	assert.Equal(t, production.StageDone, m.Snapshot().Stage)
	assert.Contains(t, gen.notes, emptyBatchNotes)
}

func TestAutopilotGivesUpAfterRevisionBudget(t *testing.T) {
	m := newTestMachine(&fakeGenerators{emptyImages: 5})
	err := autopilot(context.Background(), m, testBrief, 1)
	assert.ErrorIs(t, err, errNoCandidates)
	assert.Equal(t, production.StageImageReview, m.Snapshot().Stage)
}

func TestAutopilotRejectsBadBrief(t *testing.T) {
	m := newTestMachine(&fakeGenerators{})
	err := autopilot(context.Background(), m, production.Brief{Theme: "x", Category: production.CategoryShort}, 0)
	assert.ErrorIs(t, err, pipeline.ErrInvalidBrief)
}

func TestPrintSummary(t *testing.T) {
	m := newTestMachine(&fakeGenerators{})
	require.NoError(t, autopilot(context.Background(), m, testBrief, 0))

	var buf bytes.Buffer
	printSummary(&buf, m.Snapshot())
	out := buf.String()
	assert.Contains(t, out, "Run run-test (done)")
	assert.Contains(t, out, "Title:   DRY TAPS | who pays | #water")
	assert.Contains(t, out, "4 words in 1 audio segment(s)")
	assert.Contains(t, out, "segment 1: 4 words, 2s")
	assert.Contains(t, out, "selected #0")
}

func TestUserError(t *testing.T) {
	assert.Empty(t, userError(nil))
	err := &pipeline.StageError{Stage: "outline", Message: "Failed to generate the outline. Please try again.", Err: errors.New("boom")}
	assert.Equal(t, "Failed to generate the outline. Please try again.", userError(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, pipeline.ErrBusy.Error(), userError(pipeline.ErrBusy))
}

func TestListVoices(t *testing.T) {
	var buf bytes.Buffer
	listVoicesCmd.SetOut(&buf)
	require.NoError(t, runListVoices(listVoicesCmd, nil))
	out := buf.String()
	assert.Contains(t, out, "Puck")
	assert.Contains(t, out, "(default long)")
	assert.Contains(t, out, "en-US-Chirp3-HD-Kore")
}

// --- wizard ---

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m wizardModel, k string) wizardModel {
	t.Helper()
	next, _ := m.Update(key(k))
	return next.(wizardModel)
}

// pressRun sends a key that starts a machine command and feeds the result back.
func pressRun(t *testing.T, m wizardModel, k string) wizardModel {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(wizardModel)
	require.Equal(t, screenWorking, m.screen)
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(commandDoneMsg); ok {
			next, _ = m.Update(done)
			return next.(wizardModel)
		}
	}
	t.Fatal("no command result in batch")
	return m
}

func TestWizardFullRun(t *testing.T) {
	gen := &fakeGenerators{}
	machine := newTestMachine(gen)
	m := newWizardModel(context.Background(), machine, nil)

	m = press(t, m, "water rights")
	m = press(t, m, "tab")
	m = press(t, m, "right") // medium -> long
	m = press(t, m, "tab")
	m = press(t, m, "who pays")
	m = press(t, m, "tab")
	require.Equal(t, focusSubmit, m.focus)

	m = pressRun(t, m, "enter")
	require.Equal(t, screenReview, m.screen)
	assert.Equal(t, production.StageOutlineReview, m.state.Stage)
	assert.Equal(t, production.CategoryLong, m.state.Brief.Category)
	assert.Contains(t, m.View(), "# Outline of water rights")

	m = press(t, m, "r")
	require.Equal(t, screenNotes, m.screen)
	m = press(t, m, "shorter please")
	m = pressRun(t, m, "ctrl+s")
	assert.Equal(t, "# Revised outline", m.state.Outline)
	assert.Equal(t, []string{"shorter please"}, gen.notes)

	m = pressRun(t, m, "a")
	assert.Equal(t, production.StageScriptReview, m.state.Stage)
	assert.Contains(t, m.View(), "1 audio segment(s)")

	m = pressRun(t, m, "a")
	require.Equal(t, production.StageImageReview, m.state.Stage)

	m = pressRun(t, m, "a")
	assert.Contains(t, m.err, "selection is required")

	m = press(t, m, "j")
	m = press(t, m, "space")
	require.NotNil(t, m.state.SelectedImageID)
	assert.Equal(t, 1, *m.state.SelectedImageID)

	m = pressRun(t, m, "a")
	require.Equal(t, production.StageTitleReview, m.state.Stage)
	m = press(t, m, "space")
	m = pressRun(t, m, "a")
	require.Equal(t, production.StageCaptionReview, m.state.Stage)
	assert.Contains(t, m.View(), "Caption for DRY TAPS")

	m = pressRun(t, m, "a")
	require.Equal(t, production.StageDone, m.state.Stage)
	assert.Contains(t, m.View(), "n for a new production")

	m = press(t, m, "n")
	assert.Equal(t, screenBrief, m.screen)
	assert.Equal(t, production.StageInput, m.state.Stage)
	assert.Equal(t, "session-1", m.state.SessionID)
}

func TestWizardRequiresBrief(t *testing.T) {
	m := newWizardModel(context.Background(), newTestMachine(&fakeGenerators{}), nil)
	for range 3 {
		m = press(t, m, "tab")
	}
	m = press(t, m, "enter")
	assert.Equal(t, screenBrief, m.screen)
	assert.Equal(t, "Theme and analytical line are required", m.err)
}

func TestWizardScriptGateCannotRevise(t *testing.T) {
	m := newWizardModel(context.Background(), newTestMachine(&fakeGenerators{}), nil)
	m = press(t, m, "t")
	m = press(t, m, "tab")
	m = press(t, m, "tab")
	m = press(t, m, "l")
	m = press(t, m, "tab")
	m = pressRun(t, m, "enter")
	m = pressRun(t, m, "a")
	require.Equal(t, production.StageScriptReview, m.state.Stage)

	m = press(t, m, "r")
	assert.Equal(t, screenReview, m.screen)
}

func TestReviewContentEmptyCandidates(t *testing.T) {
	s := production.State{
		Stage: production.StageImageReview,
		ImageOutcomes: []production.ImageOutcome{
			{Prompt: "storm", Status: production.OutcomeSkipped, CandidateID: -1, Reason: "timeout"},
		},
	}
	out := reviewContent(s)
	assert.True(t, strings.HasPrefix(out, "No cover image could be rendered"))
	assert.Contains(t, out, "skipped: storm (timeout)")

	s.Stage = production.StageTitleReview
	assert.Contains(t, reviewContent(s), "No usable titles")
}
