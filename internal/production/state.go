package production

// Stage is the current position of a run in the gated pipeline.
type Stage int

const (
	StageInput Stage = iota
	StageOutlineReview
	StageScriptReview
	StageImageReview
	StageTitleReview
	StageCaptionReview
	StageDone
)

var stageNames = map[Stage]string{
	StageInput:         "input",
	StageOutlineReview: "outline_review",
	StageScriptReview:  "script_review",
	StageImageReview:   "image_review",
	StageTitleReview:   "title_review",
	StageCaptionReview: "caption_review",
	StageDone:          "done",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// StatusKind is the generation status of a run.
type StatusKind string

const (
	StatusIdle    StatusKind = "idle"
	StatusRunning StatusKind = "running"
	StatusFailed  StatusKind = "failed"
)

// Status pairs a kind with the human-readable message shown for it.
type Status struct {
	Kind    StatusKind
	Message string
}

// Brief is what the human supplies at the start of a run.
type Brief struct {
	Theme          string
	Category       Category
	AnalyticalLine string
}

// AudioSegment is one synthesized part of the narration, in playback order.
type AudioSegment struct {
	Index int
	Text  string
	PCM   []byte // 16-bit mono 24kHz samples
	WAV   []byte // PCM wrapped in a RIFF/WAVE container
}

// ImageCandidate is one cover concept rendered in both aspect ratios.
type ImageCandidate struct {
	ID     int
	Prompt string
	Wide   []byte // 16:9 JPEG
	Tall   []byte // 9:16 JPEG
}

// OutcomeStatus records what happened to one image prompt.
type OutcomeStatus string

const (
	OutcomeRendered OutcomeStatus = "rendered"
	OutcomeSkipped  OutcomeStatus = "skipped"
)

// ImageOutcome is the per-prompt result of an image batch. CandidateID is -1
// for skipped prompts.
type ImageOutcome struct {
	Prompt      string
	Status      OutcomeStatus
	CandidateID int
	Reason      string
}

// State is the aggregate record of one production run.
type State struct {
	RunID     string
	SessionID string
	Stage     Stage
	Brief     Brief

	Outline       string
	Script        string
	AudioSegments []AudioSegment

	Images          []ImageCandidate
	ImageOutcomes   []ImageOutcome
	SelectedImageID *int

	Titles        []string
	SelectedTitle *string

	Caption string

	// PendingNotes holds revision feedback keyed by the gate it was given at.
	PendingNotes map[Stage]string

	Status Status
}

// Clone returns a deep copy so callers can never write through to the
// orchestrator's state.
func (s State) Clone() State {
	out := s
	if s.AudioSegments != nil {
		out.AudioSegments = make([]AudioSegment, len(s.AudioSegments))
		for i, seg := range s.AudioSegments {
			seg.PCM = cloneBytes(seg.PCM)
			seg.WAV = cloneBytes(seg.WAV)
			out.AudioSegments[i] = seg
		}
	}
	if s.Images != nil {
		out.Images = make([]ImageCandidate, len(s.Images))
		for i, img := range s.Images {
			img.Wide = cloneBytes(img.Wide)
			img.Tall = cloneBytes(img.Tall)
			out.Images[i] = img
		}
	}
	if s.ImageOutcomes != nil {
		out.ImageOutcomes = append([]ImageOutcome(nil), s.ImageOutcomes...)
	}
	if s.Titles != nil {
		out.Titles = append([]string(nil), s.Titles...)
	}
	if s.SelectedImageID != nil {
		id := *s.SelectedImageID
		out.SelectedImageID = &id
	}
	if s.SelectedTitle != nil {
		t := *s.SelectedTitle
		out.SelectedTitle = &t
	}
	if s.PendingNotes != nil {
		out.PendingNotes = make(map[Stage]string, len(s.PendingNotes))
		for k, v := range s.PendingNotes {
			out.PendingNotes[k] = v
		}
	}
	return out
}

// Image returns the candidate with the given id.
func (s State) Image(id int) (ImageCandidate, bool) {
	for _, img := range s.Images {
		if img.ID == id {
			return img, true
		}
	}
	return ImageCandidate{}, false
}

// HasTitle reports whether t is one of the title candidates.
func (s State) HasTitle(t string) bool {
	for _, c := range s.Titles {
		if c == t {
			return true
		}
	}
	return false
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
