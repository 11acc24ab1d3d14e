package progress

import "time"

// Stage identifies which generator is active.
type Stage string

const (
	StageOutline  Stage = "outline"
	StageScript   Stage = "script"
	StageImages   Stage = "images"
	StageTitles   Stage = "titles"
	StageCaption  Stage = "caption"
	StageComplete Stage = "complete"
)

// Order is the position of each generator in a run, used to compute Percent.
var Order = []Stage{StageOutline, StageScript, StageImages, StageTitles, StageCaption}

// Phase says whether a generator started, finished or failed.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	RunID   string
	Stage   Stage
	Phase   Phase
	Message string
	Percent float64 // 0.0–1.0 through the whole run
	Elapsed time.Duration
	Error   error
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// Percent returns how far through the run a stage is. A completed stage
// counts as done.
func Percent(stage Stage, phase Phase) float64 {
	if stage == StageComplete {
		return 1.0
	}
	for i, s := range Order {
		if s == stage {
			done := i
			if phase == PhaseCompleted {
				done++
			}
			return float64(done) / float64(len(Order))
		}
	}
	return 0
}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, phase Phase, msg string, start time.Time) Event {
	return Event{
		Stage:   stage,
		Phase:   phase,
		Message: msg,
		Percent: Percent(stage, phase),
		Elapsed: time.Since(start),
	}
}
