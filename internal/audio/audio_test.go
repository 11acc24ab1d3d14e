package audio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newsroom/internal/production"
)

// paragraphs builds n paragraphs of size words each.
func paragraphs(n, size int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.Repeat("word ", size))
	}
	return strings.Join(parts, "\n\n")
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  \n\t "))
	assert.Equal(t, 4, WordCount("one two\n\nthree\tfour"))
}

func TestSplitAtThreshold(t *testing.T) {
	script := paragraphs(3, 450) // exactly 1350 words
	require.Equal(t, SplitThreshold, WordCount(script))

	parts := Split(script)
	require.Len(t, parts, 1)
	assert.Equal(t, script, parts[0])
}

func TestSplitAboveThreshold(t *testing.T) {
	// 2000 words over 5 paragraphs: first three paragraphs, then the last two.
	script := paragraphs(5, 400)

	parts := Split(script)
	require.Len(t, parts, 2)
	assert.Equal(t, 1200, WordCount(parts[0]))
	assert.Equal(t, 800, WordCount(parts[1]))
	assert.Equal(t, script, parts[0]+"\n\n"+parts[1])
}

func TestSplitEvenParagraphs(t *testing.T) {
	parts := Split(paragraphs(4, 400))
	require.Len(t, parts, 2)
	assert.Equal(t, 800, WordCount(parts[0]))
	assert.Equal(t, 800, WordCount(parts[1]))
}

func TestSplitSingleParagraph(t *testing.T) {
	script := paragraphs(1, 1400)
	parts := Split(script)
	require.Len(t, parts, 2)
	assert.Equal(t, script, parts[0])
	assert.Empty(t, parts[1])
}

func TestVoiceFor(t *testing.T) {
	assert.Equal(t, "Puck", VoiceFor(production.CategoryShort).ID)
	assert.Equal(t, "Kore", VoiceFor(production.CategoryMedium).ID)
	assert.Equal(t, "Fenrir", VoiceFor(production.CategoryLong).ID)
	assert.Equal(t, "Kore", VoiceFor(production.Category("other")).ID)
}

func TestSpeechText(t *testing.T) {
	in := "## Opening\n\n[emotion:serious] The **council** met on *Monday*.\n" +
		"It voted [pause:short] twice.\n\n" +
		"- first [emphasis:strong]point[/emphasis]\n- second point\n\n" +
		"```\nignored code\n```\n\nSee [the report](https://example.com)."

	got := SpeechText(in)

	assert.Contains(t, got, "Opening")
	assert.Contains(t, got, "[emotion:serious] The council met on Monday. It voted [pause:short] twice.")
	assert.Contains(t, got, "first [emphasis:strong]point[/emphasis]")
	assert.Contains(t, got, "second point")
	assert.Contains(t, got, "See the report.")
	assert.NotContains(t, got, "ignored code")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "##")
	assert.NotContains(t, got, "\n\n\n")
}
