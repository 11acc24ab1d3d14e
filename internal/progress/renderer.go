package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// Renderer shows a run's progress on a terminal. On a TTY it redraws a stage
// checklist above a bar; elsewhere it prints one timestamped line per stage
// transition. Handle satisfies Callback.
type Renderer struct {
	out   io.Writer
	start time.Time
	tty   bool
	width int

	phases map[Stage]Phase
	took   map[Stage]time.Duration
	last   Event
	drawn  int // lines on screen from the previous TTY draw
}

// NewRenderer creates a renderer for out, detecting TTY mode and width.
func NewRenderer(out *os.File) *Renderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return newRenderer(out, tty, width)
}

func newRenderer(out io.Writer, tty bool, width int) *Renderer {
	return &Renderer{
		out:    out,
		start:  time.Now(),
		tty:    tty,
		width:  width,
		phases: make(map[Stage]Phase),
		took:   make(map[Stage]time.Duration),
	}
}

func (r *Renderer) Handle(e Event) {
	if e.Stage == StageComplete {
		e.Percent = 1.0
	} else {
		r.phases[e.Stage] = e.Phase
		if e.Phase != PhaseStarted {
			r.took[e.Stage] = e.Elapsed
		}
	}
	e.Elapsed = time.Since(r.start)
	r.last = e

	if r.tty {
		r.draw(e)
		return
	}
	fmt.Fprintf(r.out, "[%s] %s\n", formatElapsed(e.Elapsed), e.Message)
}

// Finish removes the live display and prints how the run ended.
func (r *Renderer) Finish() {
	if r.tty {
		r.erase()
	}
	e := r.last
	switch {
	case e.Error != nil:
		fmt.Fprintf(r.out, "\n  %s stage failed after %s\n  Error: %v\n", e.Stage, formatElapsed(e.Elapsed), e.Error)
	case e.Stage == StageComplete:
		fmt.Fprintf(r.out, "\n  %s (%s)\n", e.Message, formatElapsed(e.Elapsed))
		for _, s := range Order {
			if d, ok := r.took[s]; ok {
				fmt.Fprintf(r.out, "    %-8s %s\n", s, formatElapsed(d))
			}
		}
	}
}

func (r *Renderer) draw(e Event) {
	r.erase()
	bar := renderBar(e.Percent, r.barWidth())
	fmt.Fprintf(r.out, "  %s\n  %s\n  %s %3d%%  %s",
		r.checklist(), e.Message, bar, int(e.Percent*100), formatElapsed(e.Elapsed))
	r.drawn = 3
}

// checklist renders every stage with its mark: done, running, failed or
// pending.
func (r *Renderer) checklist() string {
	parts := make([]string, 0, len(Order))
	for _, s := range Order {
		mark := "·"
		switch r.phases[s] {
		case PhaseCompleted:
			mark = "✓"
		case PhaseStarted:
			mark = "…"
		case PhaseFailed:
			mark = "✗"
		}
		parts = append(parts, mark+" "+string(s))
	}
	return strings.Join(parts, "  ")
}

func (r *Renderer) erase() {
	if r.drawn == 0 {
		return
	}
	fmt.Fprint(r.out, "\r\033[2K")
	for i := 1; i < r.drawn; i++ {
		fmt.Fprint(r.out, "\033[A\033[2K")
	}
	fmt.Fprint(r.out, "\r")
	r.drawn = 0
}

// barWidth leaves room for the indent, brackets, percent and clock.
func (r *Renderer) barWidth() int {
	return min(max(r.width-16, 20), 60)
}

func renderBar(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatElapsed renders d as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
