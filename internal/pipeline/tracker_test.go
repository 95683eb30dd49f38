package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageFromSnapshot(t *testing.T, snap Snapshot, id string) Stage {
	t.Helper()
	for _, s := range snap.Stages {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("stage %s not found", id)
	return Stage{}
}

func TestTracker_StartRunResetsEverything(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")
	tr.Apply("run-1", StageStarted(StageTranscribe))
	tr.Apply("run-1", StageFailed(StageExport, "boom"))

	tr.StartRun("run-2")

	snap := tr.Snapshot()
	assert.Equal(t, "run-2", snap.RunID)
	assert.True(t, snap.Processing)
	assert.False(t, snap.Done)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.Result)
	for _, s := range snap.Stages {
		assert.Equal(t, StatusPending, s.Status)
		assert.Nil(t, s.Progress)
	}
}

func TestTracker_FoldsStageLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")

	tr.Apply("run-1", StageStarted(StageTranscribe))
	tr.Apply("run-1", StageProgress(StageTranscribe, 0.5))
	tr.Apply("run-1", StageCompleted(StageTranscribe))
	tr.Apply("run-1", StageFailed(StageExport, "disk full"))

	snap := tr.Snapshot()

	transcribe := stageFromSnapshot(t, snap, StageTranscribe)
	assert.Equal(t, StatusCompleted, transcribe.Status)
	require.NotNil(t, transcribe.Progress)
	assert.Equal(t, 1.0, *transcribe.Progress)

	export := stageFromSnapshot(t, snap, StageExport)
	assert.Equal(t, StatusFailed, export.Status)

	assert.Equal(t, "disk full", snap.Error)
	assert.False(t, snap.Processing)

	// untouched stages stay pending
	for _, id := range []string{StageDetectSilences, StageCutSilences, StageEnhanceAudio} {
		assert.Equal(t, StatusPending, stageFromSnapshot(t, snap, id).Status)
	}
}

func TestTracker_ProgressAcceptedAsIs(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")

	// out-of-range values are not clamped
	tr.Apply("run-1", StageProgress(StageTranscribe, 1.7))

	s := stageFromSnapshot(t, tr.Snapshot(), StageTranscribe)
	assert.Equal(t, StatusActive, s.Status)
	require.NotNil(t, s.Progress)
	assert.Equal(t, 1.7, *s.Progress)
}

func TestTracker_CompletedWithoutStartStillApplied(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")

	tr.Apply("run-1", StageCompleted(StageDetectSilences))

	s := stageFromSnapshot(t, tr.Snapshot(), StageDetectSilences)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestTracker_PipelineCompletedStoresResult(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")
	tr.Apply("run-1", StageStarted(StageExport))
	tr.Apply("run-1", StageCompleted(StageExport))

	result := Result{OutputPath: "/tmp/out_edited.mp4", Stats: Stats{OriginalDuration: 10}}
	tr.Apply("run-1", PipelineCompleted(result))

	snap := tr.Snapshot()
	assert.True(t, snap.Done)
	assert.False(t, snap.Processing)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "/tmp/out_edited.mp4", snap.Result.OutputPath)
	// stage statuses are left alone
	assert.Equal(t, StatusCompleted, stageFromSnapshot(t, snap, StageExport).Status)
}

func TestTracker_PipelineFailedReturnsToInitialView(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")

	tr.Apply("run-1", PipelineFailed("ffmpeg exploded"))

	snap := tr.Snapshot()
	assert.False(t, snap.Done)
	assert.False(t, snap.Processing)
	assert.Equal(t, "ffmpeg exploded", snap.Error)
}

func TestTracker_DiscardsStaleRunEvents(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")
	tr.StartRun("run-2")

	// late event from the superseded run must be ignored
	tr.Apply("run-1", StageFailed(StageTranscribe, "stale failure"))

	snap := tr.Snapshot()
	assert.True(t, snap.Processing)
	assert.Empty(t, snap.Error)
	assert.Equal(t, StatusPending, stageFromSnapshot(t, snap, StageTranscribe).Status)
}

func TestTracker_UnknownStageIgnored(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("run-1")

	tr.Apply("run-1", StageStarted("defrobulate"))

	for _, s := range tr.Snapshot().Stages {
		assert.Equal(t, StatusPending, s.Status)
	}
}
