package stages

import (
	"fmt"
	"strings"

	"github.com/apresai/newsroom/internal/production"
)

const DefaultPersona = `You are an assistant specialized in analytical journalism. You follow a step-by-step process to produce high quality content: a researched outline, a narration script, cover image concepts, titles and a video caption. Keep the context of every step for the steps that follow, and never contradict material the user has already approved.`

const DefaultLens = "a historical and ethical perspective, grounded in primary sources, recognized experts and documented precedent"

const DefaultLanguage = "English"

const DefaultCTA = `NEWSROOM:
🔔 BREAKING STORIES FIRST: join our Telegram channel, where news and in-depth studies arrive first.

Want more? 👉 Subscribe to our YouTube channel.

📸 Follow us on Instagram too.`

// maxSourceWords bounds the source excerpt included in the outline turn.
const maxSourceWords = 6000

func outlinePrompt(b production.Brief, lens, language, source, notes string) string {
	profile := b.Category.Profile()

	prompt := fmt.Sprintf(`STEP 1: Outline.
Theme: "%s"
Piece type: %s (%d words; %s)
Analytical line: "%s"

Task:
1. Research the theme exhaustively.
2. Cover the six questions: what, who, where, when, why, how.
3. Analyse the subject through the lens of %s.
4. Write a detailed markdown outline for the piece, listing the main sections, the quotations and sources you plan to use in each section, and the share of the piece each section takes.

`, b.Theme, profile.Label, profile.Words, profile.DistributionText(), b.AnalyticalLine, lens)

	if source != "" {
		prompt += "SOURCE MATERIAL (build the outline on it; do not invent facts beyond it and your research):\n" + source + "\n\n"
	}
	if notes != "" {
		prompt += fmt.Sprintf("The user requested the following changes: \"%s\". Incorporate this feedback into the new outline.\n\n", notes)
	}

	prompt += fmt.Sprintf("Write in %s. The answer MUST be only the outline in markdown.", language)
	return prompt
}

func scriptPrompt(outline string, c production.Category, language string) string {
	profile := c.Profile()
	return fmt.Sprintf(`STEP 2: Narration script.
Using the APPROVED outline below, write the complete script for a narration of about %d words. Follow the outline's order and its content distribution (%s) strictly.

IMPORTANT: the text is read by a neural text-to-speech voice and must sound human and conversational. Guide intonation, pace and emotion with bracketed delivery markers.

Marker guide:
- Emotion: [emotion:serious], [emotion:reflective], [emotion:concerned] set the tone.
- Pause: [pause:short], [pause:medium], [pause:long] create breaths and dramatic moments.
- Emphasis: [emphasis:strong]this is crucial[/emphasis] highlights key words.
- Pace and pitch: [pace:slow] or [pitch:low] vary the cadence.
- Use the markers subtly, every 2-3 sentences, so the narration never sounds artificial.

Script format:
- Continuous prose, like a conversation with the listener.
- Do NOT include titles or headings. The narration flows naturally from one topic to the next.
- Separate paragraphs with a blank line.

Approved outline:
%s

Write in %s. The answer MUST be only the complete script text.`, profile.Words, profile.DistributionText(), outline, language)
}

func imagesPrompt(notes string) string {
	prompt := `STEP 3: Cover images.
Based on everything produced so far, describe exactly 3 distinct visual concepts for the cover of this piece. Each concept is one self-contained prompt for an image model: subject, composition, lighting and style, photorealistic and editorial, with no text, lettering or logos in the image.
`
	if notes != "" {
		prompt += fmt.Sprintf("\nThe user requested the following changes to the previous concepts: \"%s\". Incorporate this feedback.\n", notes)
	}
	prompt += `
Answer ONLY with a JSON array of 3 strings, for example: ["concept one", "concept two", "concept three"]. The image prompts must be in English.`
	return prompt
}

func titlesPrompt(language, notes string) string {
	prompt := `STEP 4: Titles.
Write exactly 3 title options for the video of this piece. Every option follows this template exactly:
HEADLINE | subtitle | #hashtag #hashtag #hashtag
- HEADLINE: at most 100 characters, in capital letters, strong and faithful to the content.
- subtitle: one short sentence that complements the headline.
- three to five relevant hashtags.
`
	if notes != "" {
		prompt += fmt.Sprintf("\nThe user requested the following changes to the previous titles: \"%s\". Incorporate this feedback.\n", notes)
	}
	prompt += fmt.Sprintf(`
Write in %s. Answer ONLY with a JSON array of 3 strings.`, language)
	return prompt
}

func captionPrompt(title, language, notes string) string {
	prompt := fmt.Sprintf(`STEP 5: Video caption.
The approved title is: "%s"

Write the video caption with these parts, in this order:
1. A question that grabs attention.
2. A short preview of the content (two or three sentences).
3. A question that invites the audience to comment.

Do NOT write any call to action, channel links or subscription requests: that block is added separately.
`, title)
	if notes != "" {
		prompt += fmt.Sprintf("\nThe user requested the following changes to the previous caption: \"%s\". Incorporate this feedback.\n", notes)
	}
	prompt += fmt.Sprintf("\nWrite in %s. The answer MUST be only the caption text.", language)
	return prompt
}

// stripCTA removes a model-written copy of the call-to-action block.
func stripCTA(body, cta string) string {
	if c := strings.TrimSpace(cta); c != "" {
		body = strings.ReplaceAll(body, c, "")
	}
	return strings.TrimSpace(body)
}
