package segment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeTitles_OnlyTitlesChange(t *testing.T) {
	r, err := Segment(sample, Options{})
	require.NoError(t, err)

	merged, unmatched := MergeTitles(r.Chapters, []TitleProposal{
		{Label: "2화", Title: "각성"},
		{Label: "9화", Title: "없는 화"},
	})
	assert.Equal(t, 1, unmatched)
	require.Len(t, merged, 2)
	assert.Equal(t, "1화 새로운 시작", merged[0].Title)
	assert.Equal(t, "각성", merged[1].Title)

	for i := range merged {
		assert.Equal(t, r.Chapters[i].Start, merged[i].Start)
		assert.Equal(t, r.Chapters[i].End, merged[i].End)
		assert.Equal(t, r.Chapters[i].Body, merged[i].Body)
	}
	assert.Equal(t, "2화 능력의 각성", r.Chapters[1].Title, "input must not be mutated")
}

func TestMergeTitles_CannotReorder(t *testing.T) {
	r, err := Segment(sample, Options{})
	require.NoError(t, err)

	merged, unmatched := MergeTitles(r.Chapters, []TitleProposal{
		{Number: intp(2), Title: "둘"},
		{Number: intp(1), Title: "하나"},
	})
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, "1화 새로운 시작", merged[0].Title)
	assert.Equal(t, "둘", merged[1].Title)
}

func TestMergeTitles_LabelWithoutNumber(t *testing.T) {
	chapters := []Chapter{{Index: 1, Label: "첫 만남", Title: "첫 만남"}}
	merged, unmatched := MergeTitles(chapters, []TitleProposal{{Label: "첫 만남", Title: "만남"}, {Label: "x", Title: ""}})
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, "만남", merged[0].Title)
}

func TestApplyVerdicts(t *testing.T) {
	r, err := Segment(sample, Options{})
	require.NoError(t, err)

	out, warns := ApplyVerdicts(r.Chapters, []Verdict{
		{Index: 1, Accepted: true, Title: "새로운 시작"},
		{Index: 2, Accepted: false},
		{Index: 42, Accepted: true, Title: "ignored"},
	})
	require.Len(t, out, 2, "rejected chapters are kept")
	assert.Equal(t, "새로운 시작", out[0].Title)
	assert.Equal(t, "2화 능력의 각성", out[1].Title)
	require.Len(t, warns, 1)
	assert.Equal(t, WarnLLMRejected, warns[0].Code)
	assert.Len(t, out[1].Warnings, 1)
	assert.Empty(t, r.Chapters[1].Warnings)
}

func TestMergeTitles_FarJumpKeepsCursor(t *testing.T) {
	var chapters []Chapter
	for i := 1; i <= 12; i++ {
		chapters = append(chapters, Chapter{Index: i, Label: fmt.Sprintf("%d화", i), Number: intp(i), Title: fmt.Sprintf("%d화", i)})
	}

	merged, unmatched := MergeTitles(chapters, []TitleProposal{
		{Number: intp(1), Title: "시작"},
		// Quoted from dialogue inside chapter 1.
		{Number: intp(10), Title: "엉뚱한 제목"},
		{Number: intp(2), Title: "만남"},
		{Number: intp(3), Title: "이별"},
		{Number: intp(10), Title: "결전"},
	})
	assert.Zero(t, unmatched)
	assert.Equal(t, "시작", merged[0].Title)
	assert.Equal(t, "만남", merged[1].Title)
	assert.Equal(t, "이별", merged[2].Title)
	assert.Equal(t, "결전", merged[9].Title, "the in-order proposal wins")
	assert.Equal(t, "4화", merged[3].Title)
}

func TestMergeTitles_SmallGapMovesCursor(t *testing.T) {
	var chapters []Chapter
	for i := 1; i <= 5; i++ {
		chapters = append(chapters, Chapter{Index: i, Number: intp(i), Title: fmt.Sprintf("%d화", i)})
	}

	merged, unmatched := MergeTitles(chapters, []TitleProposal{
		{Number: intp(3), Title: "셋"},
		{Number: intp(1), Title: "하나"},
	})
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, "1화", merged[0].Title)
	assert.Equal(t, "셋", merged[2].Title)
}
