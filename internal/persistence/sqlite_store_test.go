package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordcut/wordcut/internal/pipeline"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "wordcut.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RunsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	run := &pipeline.RunRecord{
		ID:        "run-1",
		Kind:      pipeline.RunKindAuto,
		InputPath: "/rec/talk.mp4",
		Status:    pipeline.RunStatusRunning,
	}
	require.NoError(t, store.UpsertRun(ctx, run))

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "run-1", all[0].ID)
	assert.Equal(t, pipeline.RunStatusRunning, all[0].Status)
	assert.False(t, all[0].CreatedAt.IsZero())
	assert.False(t, all[0].UpdatedAt.IsZero())
}

func TestSQLiteStore_UpsertUpdatesStatusAndStats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	run := &pipeline.RunRecord{
		ID:        "run-1",
		Kind:      pipeline.RunKindExport,
		InputPath: "/rec/talk.mp4",
		Status:    pipeline.RunStatusRunning,
	}
	require.NoError(t, store.UpsertRun(ctx, run))

	run.Status = pipeline.RunStatusCompleted
	run.OutputPath = "/rec/talk_edited.mp4"
	run.Stats = pipeline.Stats{
		OriginalDuration:       60,
		ProcessedDuration:      48,
		RemovedSilenceDuration: 12,
		SilencePercentage:      20,
	}
	require.NoError(t, store.UpsertRun(ctx, run))

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, pipeline.RunStatusCompleted, all[0].Status)
	assert.Equal(t, "/rec/talk_edited.mp4", all[0].OutputPath)
	assert.InDelta(t, 20, all[0].Stats.SilencePercentage, 1e-9)
}

func TestSQLiteStore_ListRunsHonorsLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertRun(ctx, &pipeline.RunRecord{
			ID:        id,
			Kind:      pipeline.RunKindAuto,
			InputPath: "/rec/" + id + ".mp4",
			Status:    pipeline.RunStatusCompleted,
		}))
	}

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wordcut.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.UpsertRun(context.Background(), &pipeline.RunRecord{
		ID: "run-1", Kind: pipeline.RunKindAuto, InputPath: "/rec/a.mp4", Status: pipeline.RunStatusCompleted,
	}))
	require.NoError(t, first.Close())

	// reopening re-runs init against the same file
	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	all, err := second.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	t.Parallel()
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}
