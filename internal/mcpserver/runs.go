package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/apresai/newsroom/internal/app"
	"github.com/apresai/newsroom/internal/observability"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/progress"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// MachineFactory creates the state machine of a new run.
type MachineFactory interface {
	NewMachine(runID string, cb progress.Callback) *pipeline.Machine
}

// Runs is the in-memory registry of production runs, keyed by ULID.
type Runs struct {
	factory MachineFactory
	log     *slog.Logger
	baseCtx context.Context // cancelled on shutdown

	mu      sync.Mutex
	runs    map[string]*Run
	maxRuns int
}

// NewRuns creates a registry. baseCtx should be cancelled on SIGTERM so
// in-flight generations stop with the server.
func NewRuns(factory MachineFactory, maxRuns int, logger *slog.Logger, baseCtx context.Context) *Runs {
	if maxRuns <= 0 {
		maxRuns = 20
	}
	return &Runs{
		factory: factory,
		log:     logger,
		baseCtx: baseCtx,
		runs:    make(map[string]*Run),
		maxRuns: maxRuns,
	}
}

// Run is one production run and its latest progress.
type Run struct {
	id      string
	created time.Time
	machine *pipeline.Machine

	mu        sync.Mutex
	last      progress.Event
	lastErr   error
	onStarted chan struct{}
}

func (r *Run) ID() string                  { return r.id }
func (r *Run) Machine() *pipeline.Machine { return r.machine }

// observe is the machine's progress callback.
func (r *Run) observe(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = evt
	if evt.Phase == progress.PhaseStarted && r.onStarted != nil {
		close(r.onStarted)
		r.onStarted = nil
	}
}

func (r *Run) lastEvent() (progress.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}

// Create registers a new run at the Input stage.
func (rs *Runs) Create() (*Run, error) {
	id, err := app.NewRunID()
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.runs) >= rs.maxRuns {
		return nil, fmt.Errorf("max runs reached (%d)", rs.maxRuns)
	}
	r := &Run{id: id, created: time.Now()}
	r.machine = rs.factory.NewMachine(id, r.observe)
	rs.runs[id] = r
	return r, nil
}

// Get looks up a run by id.
func (rs *Runs) Get(id string) (*Run, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

// List returns runs newest first.
func (rs *Runs) List(limit int) []*Run {
	rs.mu.Lock()
	out := make([]*Run, 0, len(rs.runs))
	for _, r := range rs.runs {
		out = append(out, r)
	}
	rs.mu.Unlock()

	// ULIDs sort by creation time
	slices.SortFunc(out, func(a, b *Run) int {
		switch {
		case a.id > b.id:
			return -1
		case a.id < b.id:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Dispatch runs a machine command in the background. It returns as soon as
// the command has either started generating or finished, so validation errors
// (wrong stage, busy, missing selection) reach the caller directly while long
// generations keep running after the tool call returns.
func (rs *Runs) Dispatch(ctx context.Context, r *Run, name string, cmd func(context.Context) error) error {
	started := make(chan struct{})
	r.mu.Lock()
	r.onStarted = started
	r.lastErr = nil
	r.mu.Unlock()

	// Detach from the request so the generation outlives the tool call, but
	// keep the request's trace.
	taskCtx := observability.DetachTraceContextFrom(ctx, rs.baseCtx)

	done := make(chan error, 1)
	go func() {
		err := cmd(taskCtx)
		r.mu.Lock()
		r.lastErr = err
		r.onStarted = nil
		r.mu.Unlock()
		if err != nil {
			rs.log.WarnContext(taskCtx, "Run command failed", "run_id", r.id, "command", name, "error", err)
		}
		done <- err
	}()

	select {
	case <-started:
		return nil
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
