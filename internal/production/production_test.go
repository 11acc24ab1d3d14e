package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Long ")
	require.NoError(t, err)
	assert.Equal(t, CategoryLong, c)

	_, err = ParseCategory("epic")
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, 400, CategoryShort.Profile().Words)
	assert.Equal(t, 1000, CategoryMedium.Profile().Words)
	assert.Equal(t, 2000, CategoryLong.Profile().Words)

	for _, c := range Categories() {
		total := 0
		for _, s := range c.Profile().Distribution {
			total += s.Percent
		}
		assert.Equal(t, 100, total, "distribution for %s", c)
	}

	assert.Equal(t, "70% information and data / 25% analysis / 5% reflective appeal",
		CategoryShort.Profile().DistributionText())
	assert.Equal(t, CategoryMedium.Profile(), Category("bogus").Profile())
}

func TestStateCloneIsDeep(t *testing.T) {
	id := 1
	title := "A | b | #c"
	s := State{
		AudioSegments:   []AudioSegment{{Index: 0, PCM: []byte{1, 2}}},
		Images:          []ImageCandidate{{ID: 1, Wide: []byte{9}}},
		Titles:          []string{title},
		SelectedImageID: &id,
		SelectedTitle:   &title,
		PendingNotes:    map[Stage]string{StageOutlineReview: "more"},
	}

	c := s.Clone()
	c.AudioSegments[0].PCM[0] = 7
	c.Images[0].Wide[0] = 7
	c.Titles[0] = "changed"
	*c.SelectedImageID = 5
	c.PendingNotes[StageOutlineReview] = "less"

	assert.Equal(t, byte(1), s.AudioSegments[0].PCM[0])
	assert.Equal(t, byte(9), s.Images[0].Wide[0])
	assert.Equal(t, title, s.Titles[0])
	assert.Equal(t, 1, *s.SelectedImageID)
	assert.Equal(t, "more", s.PendingNotes[StageOutlineReview])
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "outline_review", StageOutlineReview.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
