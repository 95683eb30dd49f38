package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordcut/wordcut/internal/transcript"
)

func testResult() *transcript.Result {
	return &transcript.Result{
		Segments: []transcript.Segment{
			{
				ID:    0,
				Start: 0,
				End:   3,
				Text:  "uno dos tres",
				Words: []transcript.Word{
					{ID: "a", Word: "uno", Start: 0, End: 1},
					{ID: "b", Word: "dos", Start: 1.05, End: 2},
					{ID: "c", Word: "tres", Start: 2.5, End: 3},
				},
			},
		},
		Words: []transcript.Word{
			{ID: "a", Word: "uno", Start: 0, End: 1},
			{ID: "b", Word: "dos", Start: 1.05, End: 2},
			{ID: "c", Word: "tres", Start: 2.5, End: 3},
		},
		DurationSeconds: 3,
		InputPath:       "/rec/talk.mp4",
	}
}

func TestController_LoadResetsState(t *testing.T) {
	c := NewController()
	c.LoadTranscript(testResult())
	require.NoError(t, c.DeleteWord("b"))
	c.SetCurrentTime(1.5)

	c.LoadTranscript(testResult())

	assert.Zero(t, c.DeletionCount())
	assert.Zero(t, c.CurrentTime())
}

func TestController_ToggleTwiceRestores(t *testing.T) {
	c := NewController()
	c.LoadTranscript(testResult())

	deleted, err := c.ToggleWord("b")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, c.DeletionCount())

	deleted, err = c.ToggleWord("b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, c.DeletionCount())
}

func TestController_MutationsRequireTranscript(t *testing.T) {
	c := NewController()

	_, err := c.ToggleWord("a")
	assert.ErrorIs(t, err, ErrNoTranscript)
	assert.ErrorIs(t, c.DeleteWord("a"), ErrNoTranscript)
	assert.ErrorIs(t, c.RestoreWord("a"), ErrNoTranscript)
}

func TestController_UnknownWordRejected(t *testing.T) {
	c := NewController()
	c.LoadTranscript(testResult())

	_, err := c.ToggleWord("nope")
	assert.Error(t, err)
	assert.Zero(t, c.DeletionCount())
}

func TestController_KeepRangesFollowDeletions(t *testing.T) {
	c := NewController()
	c.LoadTranscript(testResult())

	// no deletions: a+b merge, c separate
	ranges := c.KeepRanges()
	require.Len(t, ranges, 2)
	assert.Equal(t, transcript.KeepRange{Start: 0, End: 2}, ranges[0])

	require.NoError(t, c.DeleteWord("b"))
	ranges = c.KeepRanges()
	require.Len(t, ranges, 2)
	assert.Equal(t, transcript.KeepRange{Start: 0, End: 1}, ranges[0])
	assert.Equal(t, transcript.KeepRange{Start: 2.5, End: 3}, ranges[1])

	c.RestoreAll()
	ranges = c.KeepRanges()
	require.Len(t, ranges, 2)
	assert.Equal(t, transcript.KeepRange{Start: 0, End: 2}, ranges[0])
}

func TestController_ActiveWord(t *testing.T) {
	c := NewController()
	c.LoadTranscript(testResult())

	c.SetCurrentTime(1.5)
	assert.Equal(t, "b", c.ActiveWordID())

	c.SetCurrentTime(2.2) // gap
	assert.Empty(t, c.ActiveWordID())
}

func TestController_SnapshotView(t *testing.T) {
	c := NewController()

	empty := c.Snapshot()
	assert.False(t, empty.Loaded)
	assert.NotNil(t, empty.DeletedWordIDs)

	c.LoadTranscript(testResult())
	require.NoError(t, c.DeleteWord("c"))
	c.SetCurrentTime(0.5)

	view := c.Snapshot()
	assert.True(t, view.Loaded)
	assert.Equal(t, "/rec/talk.mp4", view.InputPath)
	assert.Equal(t, "a", view.ActiveWordID)
	assert.Equal(t, []string{"c"}, view.DeletedWordIDs)
	assert.Equal(t, 1, view.DeletionCount)
	require.Len(t, view.KeepRanges, 1)
	assert.Equal(t, transcript.KeepRange{Start: 0, End: 2}, view.KeepRanges[0])
}

func TestController_StaleTranscriptDiscarded(t *testing.T) {
	c := NewController()
	epoch := c.Epoch()

	// session superseded while transcription was in flight
	c.Reset()

	applied := c.LoadTranscriptIf(epoch, testResult())
	assert.False(t, applied)
	assert.False(t, c.Snapshot().Loaded)

	applied = c.LoadTranscriptIf(c.Epoch(), testResult())
	assert.True(t, applied)
	assert.True(t, c.Snapshot().Loaded)
}

func TestController_BusyFlags(t *testing.T) {
	c := NewController()

	require.NoError(t, c.SetTranscribing(true))
	assert.ErrorIs(t, c.SetTranscribing(true), ErrBusy)
	require.NoError(t, c.SetTranscribing(false))
	require.NoError(t, c.SetTranscribing(true))

	require.NoError(t, c.SetExporting(true))
	assert.ErrorIs(t, c.SetExporting(true), ErrBusy)
}

func TestController_ExportInputs(t *testing.T) {
	c := NewController()

	_, _, _, err := c.ExportInputs()
	assert.ErrorIs(t, err, ErrNoTranscript)

	c.LoadTranscript(testResult())
	input, ranges, res, err := c.ExportInputs()
	require.NoError(t, err)
	assert.Equal(t, "/rec/talk.mp4", input)
	assert.NotEmpty(t, ranges)
	assert.Equal(t, 3.0, res.DurationSeconds)
}
