// Package audio prepares narration scripts for speech synthesis: it splits
// long scripts into segments, picks the narrator voice and strips markdown.
package audio

import (
	"strings"

	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/tts"
)

// SplitThreshold is the word count above which a script is synthesized in
// two segments.
const SplitThreshold = 1350

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Split returns the script unchanged when it is at most SplitThreshold words.
// Longer scripts are cut at the paragraph midpoint (ceil(n/2) paragraphs in
// the first part) into exactly two parts; the second part is empty when the
// script is a single paragraph.
func Split(text string) []string {
	if WordCount(text) <= SplitThreshold {
		return []string{text}
	}
	paragraphs := strings.Split(text, "\n\n")
	mid := (len(paragraphs) + 1) / 2
	return []string{
		strings.Join(paragraphs[:mid], "\n\n"),
		strings.Join(paragraphs[mid:], "\n\n"),
	}
}

var categoryVoices = map[production.Category]tts.Voice{
	production.CategoryShort:  {ID: "Puck", Name: "Puck"},
	production.CategoryMedium: {ID: "Kore", Name: "Kore"},
	production.CategoryLong:   {ID: "Fenrir", Name: "Fenrir"},
}

// VoiceFor returns the narrator for a category. Unknown categories get the
// medium narrator.
func VoiceFor(c production.Category) tts.Voice {
	if v, ok := categoryVoices[c]; ok {
		return v
	}
	return categoryVoices[production.CategoryMedium]
}
