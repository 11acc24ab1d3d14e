package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(StageOutline, PhaseStarted))
	assert.Equal(t, 0.2, Percent(StageOutline, PhaseCompleted))
	assert.Equal(t, 0.4, Percent(StageImages, PhaseStarted))
	assert.Equal(t, 1.0, Percent(StageCaption, PhaseCompleted))
	assert.Equal(t, 1.0, Percent(StageComplete, PhaseStarted))
	assert.Equal(t, 0.0, Percent(Stage("bogus"), PhaseCompleted))
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)

	r.Handle(Event{Stage: StageOutline, Message: "Writing outline"})
	r.Handle(Event{Stage: StageComplete, Message: "Run complete"})
	r.Finish()

	out := buf.String()
	assert.Contains(t, out, "[0:00] Writing outline\n")
	assert.Contains(t, out, "Run complete (0:00)")
}

func TestRendererReportsError(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)

	r.Handle(Event{Stage: StageImages, Phase: PhaseFailed, Message: "Images failed", Error: errors.New("quota")})
	r.Finish()

	assert.Contains(t, buf.String(), "images stage failed")
	assert.True(t, strings.HasSuffix(buf.String(), "Error: quota\n"))
}

func TestRendererSummarizesStageTimes(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)

	r.Handle(Event{Stage: StageOutline, Phase: PhaseStarted, Message: "Writing outline"})
	r.Handle(Event{Stage: StageOutline, Phase: PhaseCompleted, Message: "Outline ready", Elapsed: 65 * time.Second})
	r.Handle(Event{Stage: StageComplete, Phase: PhaseCompleted, Message: "Production complete"})
	r.Finish()

	out := buf.String()
	assert.Contains(t, out, "Production complete")
	assert.Contains(t, out, "outline  1:05")
	assert.NotContains(t, out, "script ")
}

func TestTTYRendererDrawsBar(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true, 60)

	r.Handle(Event{Stage: StageOutline, Phase: PhaseCompleted, Message: "Outline ready"})
	r.Handle(Event{Stage: StageScript, Phase: PhaseStarted, Message: "Writing script", Percent: 0.5})
	assert.Contains(t, buf.String(), "✓ outline  … script  · images")
	assert.Contains(t, buf.String(), "Writing script\n")
	assert.Contains(t, buf.String(), " 50%")
	assert.Contains(t, buf.String(), "[")
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[##..]", renderBar(0.5, 4))
	assert.Equal(t, "[....]", renderBar(-1, 4))
	assert.Equal(t, "[####]", renderBar(2, 4))
	assert.Equal(t, "1:05", formatElapsed(65e9))
}
