package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/newsroom/internal/audio"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/production"
)

var tracer = otel.Tracer("newsroom-mcp")

func runIDProp() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "The run ID returned from start_run",
	}
}

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "start_run",
			Description: "Start a production run from a theme and an analytical line. Generates the outline in the background and returns a run ID. Use get_run to follow progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"theme": map[string]any{
						"type":        "string",
						"description": "Topic of the production. A URL, PDF path or text file path is ingested as source material.",
					},
					"category": map[string]any{
						"type":        "string",
						"description": "Production length: short (400 words), medium (1000), long (2000)",
						"enum":        production.CategoryNames(),
						"default":     string(production.CategoryMedium),
					},
					"analytical_line": map[string]any{
						"type":        "string",
						"description": "The angle the production analyses the theme from",
					},
				},
				Required: []string{"theme", "analytical_line"},
			},
		},
		{
			Name:        "approve",
			Description: "Approve the artifact at the current gate and generate the next stage. Image and title gates need a selection first.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"run_id": runIDProp()},
				Required:   []string{"run_id"},
			},
		},
		{
			Name:        "request_revision",
			Description: "Regenerate the artifact at the current gate (outline, images, titles or caption) with revision notes.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"run_id": runIDProp(),
					"notes": map[string]any{
						"type":        "string",
						"description": "What to change",
					},
				},
				Required: []string{"run_id", "notes"},
			},
		},
		{
			Name:        "select_image",
			Description: "Choose a cover image candidate at the image gate.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"run_id": runIDProp(),
					"image_id": map[string]any{
						"type":        "integer",
						"description": "Candidate id from get_run",
					},
				},
				Required: []string{"run_id", "image_id"},
			},
		},
		{
			Name:        "select_title",
			Description: "Choose one of the title options at the title gate.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"run_id": runIDProp(),
					"title": map[string]any{
						"type":        "string",
						"description": "Exact title text from get_run",
					},
				},
				Required: []string{"run_id", "title"},
			},
		},
		{
			Name:        "reset_run",
			Description: "Discard every artifact of a run and return it to the start. The conversation is kept.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"run_id": runIDProp()},
				Required:   []string{"run_id"},
			},
		},
		{
			Name:        "get_run",
			Description: "Get the stage, status and artifacts of a run.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"run_id": runIDProp()},
				Required:   []string{"run_id"},
			},
		},
		{
			Name:        "list_runs",
			Description: "List runs, newest first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	runs *Runs
	log  *slog.Logger
}

func NewHandlers(runs *Runs, logger *slog.Logger) *Handlers {
	return &Handlers{runs: runs, log: logger}
}

// Handler returns the handler for a tool name.
func (h *Handlers) Handler(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch name {
	case "start_run":
		return h.HandleStartRun
	case "approve":
		return h.HandleApprove
	case "request_revision":
		return h.HandleRequestRevision
	case "select_image":
		return h.HandleSelectImage
	case "select_title":
		return h.HandleSelectTitle
	case "reset_run":
		return h.HandleResetRun
	case "get_run":
		return h.HandleGetRun
	case "list_runs":
		return h.HandleListRuns
	}
	return nil
}

// HandleStartRun creates a run and submits its brief.
func (h *Handlers) HandleStartRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.start_run")
	defer span.End()

	theme := strings.TrimSpace(mcp.ParseString(req, "theme", ""))
	line := strings.TrimSpace(mcp.ParseString(req, "analytical_line", ""))
	category, err := production.ParseCategory(mcp.ParseString(req, "category", string(production.CategoryMedium)))
	if err != nil {
		return failure(span, "invalid category", err.Error()), nil
	}
	if theme == "" || line == "" {
		return failure(span, "missing input", "theme and analytical_line are required"), nil
	}

	r, err := h.runs.Create()
	if err != nil {
		span.RecordError(err)
		return failure(span, "create run failed", fmt.Sprintf("failed to start run: %v", err)), nil
	}
	span.SetAttributes(
		attribute.String("run.id", r.ID()),
		attribute.String("category", string(category)),
	)

	brief := production.Brief{Theme: theme, Category: category, AnalyticalLine: line}
	err = h.runs.Dispatch(ctx, r, "submit", func(ctx context.Context) error {
		return r.Machine().Submit(ctx, brief)
	})
	if err != nil {
		return commandFailure(span, err), nil
	}

	h.log.InfoContext(ctx, "Run started", "run_id", r.ID(), "category", category)
	return h.stateResult(r, "Outline generation started. Use get_run with this run_id to check progress.")
}

func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.approve")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	err := h.runs.Dispatch(ctx, r, "approve", r.Machine().Approve)
	if err != nil {
		return commandFailure(span, err), nil
	}
	return h.stateResult(r, "Approved.")
}

func (h *Handlers) HandleRequestRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.request_revision")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	notes := mcp.ParseString(req, "notes", "")
	err := h.runs.Dispatch(ctx, r, "request_revision", func(ctx context.Context) error {
		return r.Machine().RequestRevision(ctx, notes)
	})
	if err != nil {
		return commandFailure(span, err), nil
	}
	return h.stateResult(r, "Revision started.")
}

func (h *Handlers) HandleSelectImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.select_image")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	id := parseIntParam(req, "image_id", -1)
	span.SetAttributes(attribute.Int("image.id", id))
	if err := r.Machine().SelectImage(id); err != nil {
		return commandFailure(span, err), nil
	}
	return h.stateResult(r, "Image selected.")
}

func (h *Handlers) HandleSelectTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.select_title")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	if err := r.Machine().SelectTitle(mcp.ParseString(req, "title", "")); err != nil {
		return commandFailure(span, err), nil
	}
	return h.stateResult(r, "Title selected.")
}

func (h *Handlers) HandleResetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.reset_run")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	if err := r.Machine().Reset(); err != nil {
		return commandFailure(span, err), nil
	}
	return h.stateResult(r, "Run reset.")
}

func (h *Handlers) HandleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_run")
	defer span.End()

	r, res := h.lookup(span, req)
	if res != nil {
		return res, nil
	}
	return h.stateResult(r, "")
}

func (h *Handlers) HandleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_runs")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	runs := h.runs.List(limit)
	span.SetAttributes(attribute.Int("result_count", len(runs)))

	items := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		s := r.Machine().Snapshot()
		item := map[string]any{
			"run_id":     r.ID(),
			"stage":      s.Stage.String(),
			"status":     string(s.Status.Kind),
			"theme":      s.Brief.Theme,
			"created_at": r.created.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if s.SelectedTitle != nil {
			item["title"] = *s.SelectedTitle
		}
		items = append(items, item)
	}
	return jsonResult(map[string]any{"runs": items, "count": len(items)})
}

func (h *Handlers) lookup(span trace.Span, req mcp.CallToolRequest) (*Run, *mcp.CallToolResult) {
	id := mcp.ParseString(req, "run_id", "")
	if id == "" {
		return nil, failure(span, "missing run_id", "run_id is required")
	}
	span.SetAttributes(attribute.String("run.id", id))
	r, err := h.runs.Get(id)
	if err != nil {
		return nil, failure(span, "not found", fmt.Sprintf("run %s not found", id))
	}
	return r, nil
}

// stateResult renders the run for a tool reply. Binary artifacts are
// summarized, never inlined.
func (h *Handlers) stateResult(r *Run, message string) (*mcp.CallToolResult, error) {
	s := r.Machine().Snapshot()
	evt, lastErr := r.lastEvent()

	result := map[string]any{
		"run_id":     r.ID(),
		"session_id": s.SessionID,
		"stage":      s.Stage.String(),
		"status":     string(s.Status.Kind),
	}
	if message != "" {
		result["message"] = message
	}
	if s.Status.Message != "" {
		result["status_message"] = s.Status.Message
	}
	if evt.Stage != "" {
		result["progress_percent"] = evt.Percent
		result["progress_message"] = evt.Message
	}
	if lastErr != nil {
		result["error"] = publicMessage(lastErr)
	}
	if s.Brief.Theme != "" {
		result["brief"] = map[string]any{
			"theme":           s.Brief.Theme,
			"category":        string(s.Brief.Category),
			"analytical_line": s.Brief.AnalyticalLine,
		}
	}
	if s.Outline != "" {
		result["outline"] = s.Outline
	}
	if s.Script != "" {
		result["script"] = s.Script
		segs := make([]map[string]any, 0, len(s.AudioSegments))
		for _, seg := range s.AudioSegments {
			segs = append(segs, map[string]any{
				"index":     seg.Index,
				"words":     audio.WordCount(seg.Text),
				"wav_bytes": len(seg.WAV),
			})
		}
		result["audio_segments"] = segs
	}
	if s.Stage >= production.StageImageReview {
		images := make([]map[string]any, 0, len(s.Images))
		for _, img := range s.Images {
			images = append(images, map[string]any{
				"id":         img.ID,
				"prompt":     img.Prompt,
				"wide_bytes": len(img.Wide),
				"tall_bytes": len(img.Tall),
			})
		}
		result["images"] = images
		outcomes := make([]map[string]any, 0, len(s.ImageOutcomes))
		for _, o := range s.ImageOutcomes {
			out := map[string]any{"prompt": o.Prompt, "status": string(o.Status)}
			if o.Status == production.OutcomeRendered {
				out["image_id"] = o.CandidateID
			} else {
				out["reason"] = o.Reason
			}
			outcomes = append(outcomes, out)
		}
		result["image_outcomes"] = outcomes
		if s.SelectedImageID != nil {
			result["selected_image_id"] = *s.SelectedImageID
		}
	}
	if s.Stage >= production.StageTitleReview {
		result["titles"] = s.Titles
		if s.SelectedTitle != nil {
			result["selected_title"] = *s.SelectedTitle
		}
	}
	if s.Caption != "" {
		result["caption"] = s.Caption
	}
	if len(s.PendingNotes) > 0 {
		notes := map[string]string{}
		for stage, n := range s.PendingNotes {
			notes[stage.String()] = n
		}
		result["pending_notes"] = notes
	}
	return jsonResult(result)
}

// publicMessage hides wrapped internals of stage failures.
func publicMessage(err error) string {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func commandFailure(span trace.Span, err error) *mcp.CallToolResult {
	span.RecordError(err)
	return failure(span, "command failed", publicMessage(err))
}

func failure(span trace.Span, status, msg string) *mcp.CallToolResult {
	span.SetStatus(codes.Error, status)
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
