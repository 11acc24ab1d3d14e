package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/progress"
	"github.com/apresai/newsroom/internal/stages"
)

type fakeSession struct{ id string }

func (s *fakeSession) ID() string { return s.id }
func (s *fakeSession) Send(context.Context, string) (string, error) {
	return "ok", nil
}

type fakeBackend struct {
	mu sync.Mutex
	n  int
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) NewSession(context.Context, string) (chat.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	return &fakeSession{id: fmt.Sprintf("session-%d", b.n)}, nil
}

type fakeGenerators struct {
	failOutline bool
}

func (fakeGenerators) SystemInstruction() string { return "persona" }

func (g fakeGenerators) Outline(_ context.Context, _ chat.Session, req stages.OutlineRequest) (string, error) {
	if g.failOutline {
		return "", errors.New("backend exploded: secret detail")
	}
	return "# Outline of " + req.Brief.Theme, nil
}

func (fakeGenerators) Script(context.Context, chat.Session, stages.ScriptRequest) (stages.ScriptResult, error) {
	return stages.ScriptResult{
		Script:   "one two three",
		Segments: []production.AudioSegment{{Index: 0, Text: "one two three", WAV: make([]byte, 50)}},
	}, nil
}

func (fakeGenerators) Images(context.Context, chat.Session, string) (stages.ImageBatch, error) {
	return stages.ImageBatch{
		Candidates: []production.ImageCandidate{
			{ID: 0, Prompt: "a", Wide: []byte{1}, Tall: []byte{2}},
			{ID: 1, Prompt: "c", Wide: []byte{1}, Tall: []byte{2}},
		},
		Outcomes: []production.ImageOutcome{
			{Prompt: "a", Status: production.OutcomeRendered, CandidateID: 0},
			{Prompt: "b", Status: production.OutcomeSkipped, CandidateID: -1, Reason: "render failed"},
			{Prompt: "c", Status: production.OutcomeRendered, CandidateID: 1},
		},
	}, nil
}

func (fakeGenerators) Titles(context.Context, chat.Session, string) ([]string, error) {
	return []string{"ONE | a | #x", "TWO | b | #y"}, nil
}

func (fakeGenerators) Caption(_ context.Context, _ chat.Session, req stages.CaptionRequest) (string, error) {
	return "caption for " + req.Title, nil
}

type fakeFactory struct {
	backend *fakeBackend
	gen     pipeline.Generators
}

func (f *fakeFactory) NewMachine(runID string, cb progress.Callback) *pipeline.Machine {
	return pipeline.New(pipeline.Options{
		RunID:      runID,
		Backend:    f.backend,
		Generators: f.gen,
		Progress:   cb,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newTestHandlers(t *testing.T, gen pipeline.Generators, maxRuns int) *Handlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runs := NewRuns(&fakeFactory{backend: &fakeBackend{}, gen: gen}, maxRuns, logger, context.Background())
	return NewHandlers(runs, logger)
}

func call(t *testing.T, h *Handlers, name string, args map[string]any) (map[string]any, *mcp.CallToolResult) {
	t.Helper()
	handler := h.Handler(name)
	require.NotNil(t, handler, "no handler for %s", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, res
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, res
}

// waitFor polls get_run until the run is idle at the given stage.
func waitFor(t *testing.T, h *Handlers, id string, stage production.Stage) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		last, _ = call(t, h, "get_run", map[string]any{"run_id": id})
		return last["stage"] == stage.String() && last["status"] == string(production.StatusIdle)
	}, 2*time.Second, 5*time.Millisecond, "run never reached %s", stage)
	return last
}

func TestToolDefsHaveHandlers(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 0)
	var names []string
	for _, tool := range ToolDefs() {
		names = append(names, tool.Name)
		assert.NotNil(t, h.Handler(tool.Name), tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"start_run", "approve", "request_revision", "select_image",
		"select_title", "reset_run", "get_run", "list_runs",
	}, names)
	assert.Nil(t, h.Handler("generate_everything"))
}

func TestStartApproveGetRoundTrip(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 0)

	out, res := call(t, h, "start_run", map[string]any{
		"theme":           "water rights",
		"category":        "short",
		"analytical_line": "who pays",
	})
	require.False(t, res.IsError, out["error"])
	id, _ := out["run_id"].(string)
	require.Len(t, id, 26)

	state := waitFor(t, h, id, production.StageOutlineReview)
	assert.Equal(t, "# Outline of water rights", state["outline"])
	assert.Equal(t, "session-1", state["session_id"])
	brief := state["brief"].(map[string]any)
	assert.Equal(t, "short", brief["category"])

	out, res = call(t, h, "approve", map[string]any{"run_id": id})
	require.False(t, res.IsError, out["error"])

	state = waitFor(t, h, id, production.StageScriptReview)
	assert.Equal(t, "one two three", state["script"])
	segs := state["audio_segments"].([]any)
	require.Len(t, segs, 1)
	assert.Equal(t, float64(3), segs[0].(map[string]any)["words"])
	assert.Equal(t, float64(50), segs[0].(map[string]any)["wav_bytes"])
}

func TestFullRunThroughTools(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 0)
	out, _ := call(t, h, "start_run", map[string]any{"theme": "t", "analytical_line": "l"})
	id := out["run_id"].(string)
	waitFor(t, h, id, production.StageOutlineReview)

	call(t, h, "approve", map[string]any{"run_id": id})
	waitFor(t, h, id, production.StageScriptReview)
	call(t, h, "approve", map[string]any{"run_id": id})
	state := waitFor(t, h, id, production.StageImageReview)

	outcomes := state["image_outcomes"].([]any)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "skipped", outcomes[1].(map[string]any)["status"])
	assert.Equal(t, "render failed", outcomes[1].(map[string]any)["reason"])

	out, res := call(t, h, "approve", map[string]any{"run_id": id})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "selection is required")

	out, res = call(t, h, "select_image", map[string]any{"run_id": id, "image_id": float64(7)})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "not one of the candidates")

	out, res = call(t, h, "select_image", map[string]any{"run_id": id, "image_id": float64(1)})
	require.False(t, res.IsError, out["error"])
	assert.Equal(t, float64(1), out["selected_image_id"])

	call(t, h, "approve", map[string]any{"run_id": id})
	waitFor(t, h, id, production.StageTitleReview)
	out, res = call(t, h, "select_title", map[string]any{"run_id": id, "title": "TWO | b | #y"})
	require.False(t, res.IsError, out["error"])

	call(t, h, "approve", map[string]any{"run_id": id})
	state = waitFor(t, h, id, production.StageCaptionReview)
	assert.Equal(t, "caption for TWO | b | #y", state["caption"])

	out, res = call(t, h, "approve", map[string]any{"run_id": id})
	require.False(t, res.IsError, out["error"])
	waitFor(t, h, id, production.StageDone)

	out, res = call(t, h, "reset_run", map[string]any{"run_id": id})
	require.False(t, res.IsError, out["error"])
	assert.Equal(t, "input", out["stage"])
	assert.Equal(t, "session-1", out["session_id"])
}

func TestWrongGateIsReported(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 0)
	out, _ := call(t, h, "start_run", map[string]any{"theme": "t", "analytical_line": "l"})
	id := out["run_id"].(string)
	waitFor(t, h, id, production.StageOutlineReview)

	out, res := call(t, h, "select_title", map[string]any{"run_id": id, "title": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "not valid at the current stage")

	out, res = call(t, h, "request_revision", map[string]any{"run_id": id, "notes": "  "})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "empty")
}

func TestStageFailureHidesDetails(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{failOutline: true}, 0)
	out, _ := call(t, h, "start_run", map[string]any{"theme": "t", "analytical_line": "l"})

	// The failure either comes back from start_run or shows up in get_run.
	id, ok := out["run_id"].(string)
	if !ok {
		assert.Equal(t, "Failed to generate the outline. Please try again.", out["error"])
		return
	}
	var state map[string]any
	require.Eventually(t, func() bool {
		state, _ = call(t, h, "get_run", map[string]any{"run_id": id})
		return state["status"] == string(production.StatusFailed)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "input", state["stage"])
	assert.Equal(t, "Failed to generate the outline. Please try again.", state["status_message"])
	assert.NotContains(t, fmt.Sprint(state), "secret detail")
}

func TestStartRunValidation(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 0)

	out, res := call(t, h, "start_run", map[string]any{"theme": "t"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "required")

	out, res = call(t, h, "start_run", map[string]any{"theme": "t", "analytical_line": "l", "category": "epic"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "invalid category")

	out, res = call(t, h, "get_run", map[string]any{"run_id": "nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "not found")
}

func TestListRunsNewestFirstAndLimit(t *testing.T) {
	h := newTestHandlers(t, fakeGenerators{}, 2)

	first, _ := call(t, h, "start_run", map[string]any{"theme": "first", "analytical_line": "l"})
	time.Sleep(2 * time.Millisecond)
	second, _ := call(t, h, "start_run", map[string]any{"theme": "second", "analytical_line": "l"})

	out, res := call(t, h, "start_run", map[string]any{"theme": "third", "analytical_line": "l"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "max runs")

	out, _ = call(t, h, "list_runs", map[string]any{})
	assert.Equal(t, float64(2), out["count"])
	runs := out["runs"].([]any)
	assert.Equal(t, second["run_id"], runs[0].(map[string]any)["run_id"])
	assert.Equal(t, first["run_id"], runs[1].(map[string]any)["run_id"])

	out, _ = call(t, h, "list_runs", map[string]any{"limit": float64(1)})
	assert.Equal(t, float64(1), out["count"])
}
