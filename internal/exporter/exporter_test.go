package exporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/events"
)

type fakeEncoder struct {
	mu       sync.Mutex
	cutErr   error
	ranges   []transcript.KeepRange
	output   string
	enhanced bool
}

// CutAndExport fails on a dead context the way exec.CommandContext would.
func (f *fakeEncoder) CutAndExport(ctx context.Context, _ string, ranges []transcript.KeepRange, outputPath string, enhance bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cutErr != nil {
		return f.cutErr
	}
	f.ranges = ranges
	f.output = outputPath
	f.enhanced = enhance
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	runs map[string]*pipeline.RunRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[string]*pipeline.RunRecord)}
}

func (m *memoryStore) UpsertRun(ctx context.Context, run *pipeline.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memoryStore) ListRuns(_ context.Context, _ int) ([]*pipeline.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*pipeline.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		return r.Status
	}
	return ""
}

func (m *memoryStore) get(id string) *pipeline.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

func loadedController(t *testing.T, deleteIDs ...string) *session.Controller {
	t.Helper()
	c := session.NewController()
	c.LoadTranscript(&transcript.Result{
		Segments: []transcript.Segment{
			{
				ID: 0, Start: 0, End: 3, Text: "uno dos tres",
				Words: []transcript.Word{
					{ID: "a", Word: "uno", Start: 0, End: 1},
					{ID: "b", Word: "dos", Start: 1.05, End: 2},
					{ID: "c", Word: "tres", Start: 2.5, End: 3},
				},
			},
		},
		DurationSeconds: 3,
		InputPath:       "/rec/talk.mp4",
	})
	for _, id := range deleteIDs {
		require.NoError(t, c.DeleteWord(id))
	}
	return c
}

func TestExporter_RendersKeepRangesAndResetsSession(t *testing.T) {
	ctrl := loadedController(t, "b")
	enc := &fakeEncoder{}
	tracker := pipeline.NewTracker()
	bus := events.NewBus()
	store := newMemoryStore()

	exp := New(ctrl, enc, tracker, bus, store)
	runID, err := exp.Start(context.Background(), Options{EnhanceAudio: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.status(runID) == pipeline.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	enc.mu.Lock()
	defer enc.mu.Unlock()
	require.Len(t, enc.ranges, 2)
	assert.InDelta(t, 0, enc.ranges[0].Start, 1e-9)
	assert.InDelta(t, 1, enc.ranges[0].End, 1e-9)
	assert.InDelta(t, 2.5, enc.ranges[1].Start, 1e-9)
	assert.InDelta(t, 3, enc.ranges[1].End, 1e-9)
	assert.Equal(t, "/rec/talk_edited.mp4", enc.output)
	assert.True(t, enc.enhanced)

	// a completed export ends the editing session
	assert.Equal(t, 0, ctrl.DeletionCount())
	_, _, _, err = ctrl.ExportInputs()
	assert.ErrorIs(t, err, session.ErrNoTranscript)
}

func TestExporter_EmitsExportStageAndCompletion(t *testing.T) {
	ctrl := loadedController(t, "b")
	enc := &fakeEncoder{}
	tracker := pipeline.NewTracker()
	bus := events.NewBus()
	store := newMemoryStore()

	ch := bus.Subscribe("test", 16)
	defer bus.Unsubscribe("test")

	exp := New(ctrl, enc, tracker, bus, store)
	runID, err := exp.Start(context.Background(), Options{})
	require.NoError(t, err)

	var got []pipeline.Event
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case env := <-ch:
			assert.Equal(t, runID, env.RunID)
			got = append(got, env.Event.(pipeline.Event))
		case <-deadline:
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	require.NotNil(t, got[0].StageStarted)
	assert.Equal(t, pipeline.StageExport, got[0].StageStarted.Stage)
	require.NotNil(t, got[1].StageCompleted)
	assert.Equal(t, pipeline.StageExport, got[1].StageCompleted.Stage)
	require.NotNil(t, got[2].PipelineCompleted)
	result := got[2].PipelineCompleted.Result
	assert.Equal(t, "/rec/talk_edited.mp4", result.OutputPath)
	assert.InDelta(t, 1.5, result.Stats.ProcessedDuration, 1e-9)
	assert.InDelta(t, 1.5, result.Stats.RemovedSilenceDuration, 1e-9)
	assert.InDelta(t, 50, result.Stats.SilencePercentage, 1e-9)
}

func TestExporter_FailureKeepsSessionAndRecordsError(t *testing.T) {
	ctrl := loadedController(t, "b")
	enc := &fakeEncoder{cutErr: errors.New("encoder exploded")}
	tracker := pipeline.NewTracker()
	bus := events.NewBus()
	store := newMemoryStore()

	exp := New(ctrl, enc, tracker, bus, store)
	runID, err := exp.Start(context.Background(), Options{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.status(runID) == pipeline.RunStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	// session survives so the user can retry
	assert.Equal(t, 1, ctrl.DeletionCount())
	_, _, _, err = ctrl.ExportInputs()
	assert.NoError(t, err)

	// and a second export is possible right away
	require.Eventually(t, func() bool {
		return ctrl.SetExporting(true) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExporter_RunOutlivesCallerContext(t *testing.T) {
	ctrl := loadedController(t, "b")
	enc := &fakeEncoder{}
	store := newMemoryStore()
	exp := New(ctrl, enc, pipeline.NewTracker(), events.NewBus(), store)

	// the HTTP request that starts an export is gone the moment the 202
	// is written, so its context must not reach the encoder
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runID, err := exp.Start(ctx, Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return store.status(runID) == pipeline.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExporter_StatsUseTranscriptDuration(t *testing.T) {
	ctrl := session.NewController()
	ctrl.LoadTranscript(&transcript.Result{
		Segments: []transcript.Segment{
			{
				ID: 0, Start: 0, End: 3, Text: "uno dos tres",
				Words: []transcript.Word{
					{ID: "a", Word: "uno", Start: 0, End: 1},
					{ID: "b", Word: "dos", Start: 1.05, End: 2},
					{ID: "c", Word: "tres", Start: 2.5, End: 3},
				},
			},
		},
		DurationSeconds: 10,
		InputPath:       "/rec/talk.mp4",
	})
	require.NoError(t, ctrl.DeleteWord("b"))

	store := newMemoryStore()
	exp := New(ctrl, &fakeEncoder{}, pipeline.NewTracker(), events.NewBus(), store)
	runID, err := exp.Start(context.Background(), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return store.status(runID) == pipeline.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	stats := store.get(runID).Stats
	assert.InDelta(t, 10, stats.OriginalDuration, 1e-9)
	assert.InDelta(t, 1.5, stats.ProcessedDuration, 1e-9)
	assert.InDelta(t, 8.5, stats.RemovedSilenceDuration, 1e-9)
	assert.InDelta(t, 85, stats.SilencePercentage, 1e-9)
}

func TestExporter_RejectsWithoutTranscript(t *testing.T) {
	exp := New(session.NewController(), &fakeEncoder{}, pipeline.NewTracker(), events.NewBus(), nil)
	_, err := exp.Start(context.Background(), Options{})
	assert.ErrorIs(t, err, session.ErrNoTranscript)
}

func TestExporter_RejectsWhenEverythingDeleted(t *testing.T) {
	ctrl := loadedController(t, "a", "b", "c")
	exp := New(ctrl, &fakeEncoder{}, pipeline.NewTracker(), events.NewBus(), nil)
	_, err := exp.Start(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestExporter_HonorsExplicitOutputPath(t *testing.T) {
	ctrl := loadedController(t, "b")
	enc := &fakeEncoder{}
	store := newMemoryStore()
	exp := New(ctrl, enc, pipeline.NewTracker(), events.NewBus(), store)

	runID, err := exp.Start(context.Background(), Options{OutputPath: "/out/final.mp4"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return store.status(runID) == pipeline.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	enc.mu.Lock()
	defer enc.mu.Unlock()
	assert.Equal(t, "/out/final.mp4", enc.output)
}
