// Package pipeline drives a production run through its gated stages. A
// Machine owns the run state and the conversational session; every command
// validates the current stage before changing anything.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/progress"
	"github.com/apresai/newsroom/internal/stages"
)

// Generators produces the artifacts of each stage. *stages.Studio is the
// production implementation.
type Generators interface {
	SystemInstruction() string
	Outline(ctx context.Context, s chat.Session, req stages.OutlineRequest) (string, error)
	Script(ctx context.Context, s chat.Session, req stages.ScriptRequest) (stages.ScriptResult, error)
	Images(ctx context.Context, s chat.Session, notes string) (stages.ImageBatch, error)
	Titles(ctx context.Context, s chat.Session, notes string) ([]string, error)
	Caption(ctx context.Context, s chat.Session, req stages.CaptionRequest) (string, error)
}

type Options struct {
	RunID      string
	Backend    chat.Backend
	Generators Generators
	Progress   progress.Callback
	Logger     *slog.Logger
}

// failureMessages are the human-facing texts stored in Status on failure.
var failureMessages = map[progress.Stage]string{
	progress.StageOutline: "Failed to generate the outline. Please try again.",
	progress.StageScript:  "Failed to generate the script and audio. Please try again.",
	progress.StageImages:  "Failed to generate the images. Please try again.",
	progress.StageTitles:  "Failed to generate the titles. Please try again.",
	progress.StageCaption: "Failed to generate the caption. Please try again.",
}

var startMessages = map[progress.Stage]string{
	progress.StageOutline: "Researching and writing the outline...",
	progress.StageScript:  "Writing the script and synthesizing audio...",
	progress.StageImages:  "Designing and rendering cover images...",
	progress.StageTitles:  "Writing title options...",
	progress.StageCaption: "Writing the caption...",
}

var doneMessages = map[progress.Stage]string{
	progress.StageOutline: "Outline ready for review",
	progress.StageScript:  "Script and audio ready for review",
	progress.StageImages:  "Cover images ready for review",
	progress.StageTitles:  "Titles ready for review",
	progress.StageCaption: "Caption ready for review",
}

// Machine is the approval state machine of one production run.
type Machine struct {
	backend  chat.Backend
	gen      Generators
	progress progress.Callback
	logger   *slog.Logger

	mu      sync.Mutex
	state   production.State
	session chat.Session
}

func New(opts Options) *Machine {
	cb := opts.Progress
	if cb == nil {
		cb = progress.NopCallback
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		backend:  opts.Backend,
		gen:      opts.Generators,
		progress: cb,
		logger:   logger.With("run_id", opts.RunID),
		state: production.State{
			RunID:  opts.RunID,
			Stage:  production.StageInput,
			Status: production.Status{Kind: production.StatusIdle},
		},
	}
}

// Snapshot returns a deep copy of the run state.
func (m *Machine) Snapshot() production.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Submit validates the brief and generates the outline. The session is
// created on the first Submit and kept for the life of the machine.
func (m *Machine) Submit(ctx context.Context, b production.Brief) error {
	b.Theme = strings.TrimSpace(b.Theme)
	b.AnalyticalLine = strings.TrimSpace(b.AnalyticalLine)
	if b.Theme == "" || b.AnalyticalLine == "" {
		return fmt.Errorf("%w: theme and analytical line are required", ErrInvalidBrief)
	}
	if !b.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidBrief, b.Category)
	}

	if err := m.begin(production.StageInput, nil); err != nil {
		return err
	}

	var outline string
	err := m.generate(ctx, progress.StageOutline, func(ctx context.Context, s chat.Session) error {
		var err error
		outline, err = m.gen.Outline(ctx, s, stages.OutlineRequest{Brief: b})
		return err
	})

	return m.finish(progress.StageOutline, err, func(st *production.State) {
		st.Brief = b
		st.Outline = outline
		st.Stage = production.StageOutlineReview
	})
}

// Approve accepts the artifact at the current gate and runs the next stage.
func (m *Machine) Approve(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Status.Kind == production.StatusRunning {
		m.mu.Unlock()
		return ErrBusy
	}
	stage := m.state.Stage
	m.mu.Unlock()

	switch stage {
	case production.StageOutlineReview:
		return m.approveOutline(ctx)
	case production.StageScriptReview:
		return m.approveScript(ctx)
	case production.StageImageReview:
		return m.approveImage(ctx)
	case production.StageTitleReview:
		return m.approveTitle(ctx)
	case production.StageCaptionReview:
		return m.approveCaption()
	default:
		return fmt.Errorf("%w: approve at %s", ErrInvalidTransition, stage)
	}
}

func (m *Machine) approveOutline(ctx context.Context) error {
	if err := m.begin(production.StageOutlineReview, nil); err != nil {
		return err
	}
	m.mu.Lock()
	req := stages.ScriptRequest{Outline: m.state.Outline, Category: m.state.Brief.Category}
	m.mu.Unlock()

	var res stages.ScriptResult
	err := m.generate(ctx, progress.StageScript, func(ctx context.Context, s chat.Session) error {
		var err error
		res, err = m.gen.Script(ctx, s, req)
		return err
	})

	return m.finish(progress.StageScript, err, func(st *production.State) {
		st.Script = res.Script
		st.AudioSegments = res.Segments
		st.Stage = production.StageScriptReview
	})
}

func (m *Machine) approveScript(ctx context.Context) error {
	if err := m.begin(production.StageScriptReview, nil); err != nil {
		return err
	}
	return m.runImages(ctx, "", production.StageImageReview)
}

func (m *Machine) approveImage(ctx context.Context) error {
	err := m.begin(production.StageImageReview, func(st *production.State) error {
		if st.SelectedImageID == nil {
			return ErrSelectionRequired
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.runTitles(ctx, "", production.StageTitleReview)
}

func (m *Machine) approveTitle(ctx context.Context) error {
	var title string
	err := m.begin(production.StageTitleReview, func(st *production.State) error {
		if st.SelectedTitle == nil {
			return ErrSelectionRequired
		}
		title = *st.SelectedTitle
		return nil
	})
	if err != nil {
		return err
	}
	return m.runCaption(ctx, stages.CaptionRequest{Title: title}, production.StageCaptionReview)
}

func (m *Machine) approveCaption() error {
	m.mu.Lock()
	if m.state.Status.Kind == production.StatusRunning {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state.Stage != production.StageCaptionReview {
		stage := m.state.Stage
		m.mu.Unlock()
		return fmt.Errorf("%w: approve at %s", ErrInvalidTransition, stage)
	}
	m.state.Stage = production.StageDone
	m.state.Status = production.Status{Kind: production.StatusIdle}
	m.state.PendingNotes = nil
	runID := m.state.RunID
	m.mu.Unlock()

	m.logger.Info("run complete")
	m.progress(progress.Event{
		RunID:   runID,
		Stage:   progress.StageComplete,
		Phase:   progress.PhaseCompleted,
		Message: "Production complete",
		Percent: 1.0,
	})
	return nil
}

// RequestRevision regenerates the artifact at the current gate with the
// human's notes. It is available at the outline, image, title and caption
// gates.
func (m *Machine) RequestRevision(ctx context.Context, notes string) error {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ErrEmptyNotes
	}

	m.mu.Lock()
	if m.state.Status.Kind == production.StatusRunning {
		m.mu.Unlock()
		return ErrBusy
	}
	stage := m.state.Stage
	m.mu.Unlock()

	switch stage {
	case production.StageOutlineReview, production.StageImageReview,
		production.StageTitleReview, production.StageCaptionReview:
	default:
		return fmt.Errorf("%w: revision at %s", ErrInvalidTransition, stage)
	}

	if err := m.begin(stage, nil); err != nil {
		return err
	}
	m.mu.Lock()
	if m.state.PendingNotes == nil {
		m.state.PendingNotes = map[production.Stage]string{}
	}
	m.state.PendingNotes[stage] = notes
	brief := m.state.Brief
	var title string
	if m.state.SelectedTitle != nil {
		title = *m.state.SelectedTitle
	}
	m.mu.Unlock()

	switch stage {
	case production.StageOutlineReview:
		var outline string
		err := m.generate(ctx, progress.StageOutline, func(ctx context.Context, s chat.Session) error {
			var err error
			outline, err = m.gen.Outline(ctx, s, stages.OutlineRequest{Brief: brief, Notes: notes})
			return err
		})
		return m.finish(progress.StageOutline, err, func(st *production.State) {
			st.Outline = outline
		})
	case production.StageImageReview:
		return m.runImages(ctx, notes, stage)
	case production.StageTitleReview:
		return m.runTitles(ctx, notes, stage)
	default:
		return m.runCaption(ctx, stages.CaptionRequest{Title: title, Notes: notes}, stage)
	}
}

func (m *Machine) runImages(ctx context.Context, notes string, next production.Stage) error {
	var batch stages.ImageBatch
	err := m.generate(ctx, progress.StageImages, func(ctx context.Context, s chat.Session) error {
		var err error
		batch, err = m.gen.Images(ctx, s, notes)
		return err
	})
	return m.finish(progress.StageImages, err, func(st *production.State) {
		st.Images = batch.Candidates
		st.ImageOutcomes = batch.Outcomes
		st.SelectedImageID = nil
		st.Stage = next
	})
}

func (m *Machine) runTitles(ctx context.Context, notes string, next production.Stage) error {
	var titles []string
	err := m.generate(ctx, progress.StageTitles, func(ctx context.Context, s chat.Session) error {
		var err error
		titles, err = m.gen.Titles(ctx, s, notes)
		return err
	})
	return m.finish(progress.StageTitles, err, func(st *production.State) {
		st.Titles = titles
		st.SelectedTitle = nil
		st.Stage = next
	})
}

func (m *Machine) runCaption(ctx context.Context, req stages.CaptionRequest, next production.Stage) error {
	var caption string
	err := m.generate(ctx, progress.StageCaption, func(ctx context.Context, s chat.Session) error {
		var err error
		caption, err = m.gen.Caption(ctx, s, req)
		return err
	})
	return m.finish(progress.StageCaption, err, func(st *production.State) {
		st.Caption = caption
		st.Stage = next
	})
}

// SelectImage records the human's choice of cover image.
func (m *Machine) SelectImage(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status.Kind == production.StatusRunning {
		return ErrBusy
	}
	if m.state.Stage != production.StageImageReview {
		return fmt.Errorf("%w: select image at %s", ErrInvalidTransition, m.state.Stage)
	}
	if _, ok := m.state.Image(id); !ok {
		return fmt.Errorf("%w: no image with id %d", ErrInvalidSelection, id)
	}
	m.state.SelectedImageID = &id
	return nil
}

// SelectTitle records the human's choice of title. The title must match a
// candidate exactly.
func (m *Machine) SelectTitle(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status.Kind == production.StatusRunning {
		return ErrBusy
	}
	if m.state.Stage != production.StageTitleReview {
		return fmt.Errorf("%w: select title at %s", ErrInvalidTransition, m.state.Stage)
	}
	if !m.state.HasTitle(title) {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, title)
	}
	m.state.SelectedTitle = &title
	return nil
}

// Reset discards every artifact and returns to Input. The session, and with
// it the backend's memory of the run, is kept.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status.Kind == production.StatusRunning {
		return ErrBusy
	}
	m.state = production.State{
		RunID:     m.state.RunID,
		SessionID: m.state.SessionID,
		Stage:     production.StageInput,
		Status:    production.Status{Kind: production.StatusIdle},
	}
	m.logger.Info("run reset", "session", m.state.SessionID)
	return nil
}

// begin checks the stage and claims the single generation slot. check, when
// set, runs under the same lock so the state it inspects cannot change before
// the slot is taken.
func (m *Machine) begin(expected production.Stage, check func(*production.State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status.Kind == production.StatusRunning {
		return ErrBusy
	}
	if m.state.Stage != expected {
		return fmt.Errorf("%w: expected %s, at %s", ErrInvalidTransition, expected, m.state.Stage)
	}
	if check != nil {
		if err := check(&m.state); err != nil {
			return err
		}
	}
	m.state.Status = production.Status{Kind: production.StatusRunning}
	return nil
}

// generate runs fn outside the lock inside a span, creating the session
// first if this is the run's first generation.
func (m *Machine) generate(ctx context.Context, stage progress.Stage, fn func(context.Context, chat.Session) error) error {
	m.mu.Lock()
	runID := m.state.RunID
	m.mu.Unlock()

	ctx, span := otel.Tracer("newsroom/pipeline").Start(ctx, "stage."+string(stage))
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("stage", string(stage)),
	)

	start := time.Now()
	m.logger.InfoContext(ctx, "stage started", "stage", stage)
	m.progress(progress.Event{
		RunID:   runID,
		Stage:   stage,
		Phase:   progress.PhaseStarted,
		Message: startMessages[stage],
		Percent: progress.Percent(stage, progress.PhaseStarted),
	})

	err := m.withSession(ctx, fn)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "stage failed", "stage", stage, "elapsed", elapsed.Round(time.Millisecond).String(), "error", err)
		m.progress(progress.Event{
			RunID:   runID,
			Stage:   stage,
			Phase:   progress.PhaseFailed,
			Message: failureMessages[stage],
			Percent: progress.Percent(stage, progress.PhaseStarted),
			Elapsed: elapsed,
			Error:   err,
		})
		return err
	}

	m.logger.InfoContext(ctx, "stage completed", "stage", stage, "elapsed", elapsed.Round(time.Millisecond).String())
	m.progress(progress.Event{
		RunID:   runID,
		Stage:   stage,
		Phase:   progress.PhaseCompleted,
		Message: doneMessages[stage],
		Percent: progress.Percent(stage, progress.PhaseCompleted),
		Elapsed: elapsed,
	})
	return nil
}

// withSession hands fn the run's session. The session is only touched while
// the machine is Running, so it needs no lock of its own.
func (m *Machine) withSession(ctx context.Context, fn func(context.Context, chat.Session) error) error {
	if m.session == nil {
		s, err := m.backend.NewSession(ctx, m.gen.SystemInstruction())
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		m.session = s
		m.mu.Lock()
		m.state.SessionID = s.ID()
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "session created", "session", s.ID(), "backend", m.backend.Name())
	}
	return fn(ctx, m.session)
}

// finish releases the generation slot, applying the result on success or
// recording the failure with the stage unchanged.
func (m *Machine) finish(stage progress.Stage, err error, apply func(*production.State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		msg := failureMessages[stage]
		m.state.Status = production.Status{Kind: production.StatusFailed, Message: msg}
		return &StageError{Stage: string(stage), Message: msg, Err: err}
	}
	apply(&m.state)
	m.state.PendingNotes = nil
	m.state.Status = production.Status{Kind: production.StatusIdle}
	return nil
}
