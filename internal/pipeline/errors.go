package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned for any command issued while a generation is running.
	ErrBusy = errors.New("a generation is already running")
	// ErrInvalidTransition is returned when a command is not valid at the current stage.
	ErrInvalidTransition = errors.New("command not valid at the current stage")
	// ErrSelectionRequired is returned when approving a gate that needs a choice first.
	ErrSelectionRequired = errors.New("a selection is required before approving")
	// ErrInvalidSelection is returned when a selection is not one of the candidates.
	ErrInvalidSelection = errors.New("selection is not one of the candidates")
	// ErrInvalidBrief is returned when the theme, category or analytical line is missing or unknown.
	ErrInvalidBrief = errors.New("invalid brief")
	// ErrEmptyNotes is returned when a revision is requested without notes.
	ErrEmptyNotes = errors.New("revision notes are empty")
)

// StageError reports a failed generation. Message is the text shown to the
// human; Err carries the cause.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
