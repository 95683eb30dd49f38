package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordcut/wordcut/internal/media"
	"github.com/wordcut/wordcut/internal/transcript"
)

func TestBuildKeepRanges_PadsCutsWithMargin(t *testing.T) {
	silences := []media.Silence{{Start: 5, End: 10}}

	ranges := BuildKeepRanges(silences, 20, 0.2)

	require.Len(t, ranges, 2)
	assert.InDelta(t, 0.0, ranges[0].Start, 1e-9)
	assert.InDelta(t, 5.2, ranges[0].End, 1e-9)
	assert.InDelta(t, 9.8, ranges[1].Start, 1e-9)
	assert.InDelta(t, 20.0, ranges[1].End, 1e-9)
}

func TestBuildKeepRanges_NoSilencesKeepsEverything(t *testing.T) {
	ranges := BuildKeepRanges(nil, 12.5, 0.2)
	require.Len(t, ranges, 1)
	assert.Equal(t, transcript.KeepRange{Start: 0, End: 12.5}, ranges[0])
}

func TestBuildKeepRanges_ShortSilenceMarginsDoNotOverlap(t *testing.T) {
	// 0.3s silence with 0.2s margins on each side would invert the cut.
	silences := []media.Silence{{Start: 5.0, End: 5.3}}

	ranges := BuildKeepRanges(silences, 10, 0.2)

	for i := 1; i < len(ranges); i++ {
		assert.GreaterOrEqual(t, ranges[i].Start, ranges[i-1].End)
	}
	for _, r := range ranges {
		assert.Less(t, r.Start, r.End)
	}
}

func TestBuildKeepRanges_TrailingSilenceToEnd(t *testing.T) {
	silences := []media.Silence{{Start: 8, End: 10}}

	ranges := BuildKeepRanges(silences, 10, 0.2)

	require.Len(t, ranges, 2)
	// margin keeps a sliver after the silence start and before the end
	assert.InDelta(t, 8.2, ranges[0].End, 1e-9)
	assert.InDelta(t, 9.8, ranges[1].Start, 1e-9)
	assert.InDelta(t, 10.0, ranges[1].End, 1e-9)
}

func TestTotalSilence(t *testing.T) {
	silences := []media.Silence{{Start: 1, End: 2.5}, {Start: 4, End: 4.5}}
	assert.InDelta(t, 2.0, TotalSilence(silences), 1e-9)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/rec/talk_edited.mp4", OutputPath("/rec/talk.mp4"))
	assert.Equal(t, "/rec/TALK_edited.mp4", OutputPath("/rec/TALK.MP4"))
	assert.Equal(t, "/rec/clip.mov_edited.mp4", OutputPath("/rec/clip.mov"))
}
