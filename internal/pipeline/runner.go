package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/rs/xid"

	"github.com/wordcut/wordcut/internal/media"
	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/events"
	"github.com/wordcut/wordcut/pkg/log"
)

// MediaOps is the subset of ffmpeg operations the runner drives.
type MediaOps interface {
	Duration(ctx context.Context, inputPath string) (float64, error)
	DetectSilences(ctx context.Context, inputPath string, thresholdDB, minDuration float64) ([]media.Silence, error)
	CutAndExport(ctx context.Context, inputPath string, ranges []transcript.KeepRange, outputPath string, enhance bool) error
	EnhanceAudio(ctx context.Context, inputPath, outputPath string) error
	CopyVideo(ctx context.Context, inputPath, outputPath string) error
}

// Transcriber produces a timed transcript for a recording. progress may be
// nil; when set it receives fractions in [0,1].
type Transcriber interface {
	Transcribe(ctx context.Context, inputPath, language string, progress func(float64)) (*transcript.Result, error)
}

// Config controls one automatic run. Defaults match the product tuning.
type Config struct {
	EnhanceAudio       bool    `json:"enhance_audio"`
	CutSilences        bool    `json:"cut_silences"`
	SilenceThresholdDB float64 `json:"silence_threshold_db"`
	SilenceMinDuration float64 `json:"silence_min_duration"`
	CutMargin          float64 `json:"cut_margin"`
	Language           string  `json:"language,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		EnhanceAudio:       true,
		CutSilences:        true,
		SilenceThresholdDB: -30.0,
		SilenceMinDuration: 0.5,
		CutMargin:          0.2,
	}
}

// RunRecord is the persisted outcome of one run.
type RunRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "auto" or "export"
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Status     string    `json:"status"` // "running", "completed", "failed"
	Error      string    `json:"error,omitempty"`
	Stats      Stats     `json:"stats"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	RunKindAuto   = "auto"
	RunKindExport = "export"

	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunStore persists run outcomes for the history view.
type RunStore interface {
	UpsertRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}

// Runner executes the automatic pipeline: transcribe, detect silences, cut
// or enhance, and report everything as events through the bus and tracker.
type Runner struct {
	media   MediaOps
	trans   Transcriber
	tracker *Tracker
	bus     *events.Bus
	store   RunStore // may be nil
}

func NewRunner(m MediaOps, trans Transcriber, tracker *Tracker, bus *events.Bus, store RunStore) *Runner {
	return &Runner{media: m, trans: trans, tracker: tracker, bus: bus, store: store}
}

// Start launches a run in the background and returns its identity. Starting
// a new run supersedes the previous one: the tracker resets and any late
// events from the old run are discarded by their run id.
func (r *Runner) Start(ctx context.Context, inputPath string, cfg Config) string {
	// the run outlives the request that started it
	ctx = context.WithoutCancel(ctx)

	runID := xid.New().String()
	r.tracker.StartRun(runID)
	r.recordRun(ctx, &RunRecord{
		ID:        runID,
		Kind:      RunKindAuto,
		InputPath: inputPath,
		Status:    RunStatusRunning,
	})

	go r.run(ctx, runID, inputPath, cfg)
	return runID
}

func (r *Runner) run(ctx context.Context, runID, inputPath string, cfg Config) {
	defer removeTempFiles(inputPath)

	result, err := r.process(ctx, runID, inputPath, cfg)
	if err != nil {
		log.Error("Pipeline run %s failed: %v", runID, err)
		sentry.CaptureException(err)
		r.emit(runID, PipelineFailed(err.Error()))
		r.recordRun(ctx, &RunRecord{
			ID:        runID,
			Kind:      RunKindAuto,
			InputPath: inputPath,
			Status:    RunStatusFailed,
			Error:     err.Error(),
		})
		return
	}

	log.Info("Pipeline run %s completed: %s (%s)", runID, result.OutputPath,
		humanize.Bytes(result.Stats.OriginalSizeBytes))
	r.emit(runID, PipelineCompleted(*result))
	r.recordRun(ctx, &RunRecord{
		ID:         runID,
		Kind:       RunKindAuto,
		InputPath:  inputPath,
		OutputPath: result.OutputPath,
		Status:     RunStatusCompleted,
		Stats:      result.Stats,
	})
}

func (r *Runner) process(ctx context.Context, runID, inputPath string, cfg Config) (*Result, error) {
	originalDuration, err := r.media.Duration(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	r.emit(runID, StageStarted(StageTranscribe))
	res, err := r.trans.Transcribe(ctx, inputPath, cfg.Language, func(p float64) {
		r.emit(runID, StageProgress(StageTranscribe, p))
	})
	if err != nil {
		r.emit(runID, StageFailed(StageTranscribe, err.Error()))
		return nil, err
	}
	r.emit(runID, StageCompleted(StageTranscribe))

	r.emit(runID, StageStarted(StageDetectSilences))
	silences, err := r.media.DetectSilences(ctx, inputPath, cfg.SilenceThresholdDB, cfg.SilenceMinDuration)
	if err != nil {
		r.emit(runID, StageFailed(StageDetectSilences, err.Error()))
		return nil, err
	}
	r.emit(runID, StageCompleted(StageDetectSilences))

	totalSilence := TotalSilence(silences)
	outputPath := OutputPath(inputPath)

	switch {
	case cfg.CutSilences && len(silences) > 0:
		r.emit(runID, StageStarted(StageCutSilences))
		keepRanges := BuildKeepRanges(silences, originalDuration, cfg.CutMargin)
		log.Info("Keep ranges (%d segments) for %s: %s", len(keepRanges), inputPath, fmtRanges(keepRanges))
		if err := r.media.CutAndExport(ctx, inputPath, keepRanges, outputPath, cfg.EnhanceAudio); err != nil {
			r.emit(runID, StageFailed(StageCutSilences, err.Error()))
			return nil, err
		}
		r.emit(runID, StageCompleted(StageCutSilences))
	case cfg.EnhanceAudio:
		r.emit(runID, StageStarted(StageEnhanceAudio))
		if err := r.media.EnhanceAudio(ctx, inputPath, outputPath); err != nil {
			r.emit(runID, StageFailed(StageEnhanceAudio, err.Error()))
			return nil, err
		}
		r.emit(runID, StageCompleted(StageEnhanceAudio))
	default:
		// nothing requested, remux only
		if err := r.media.CopyVideo(ctx, inputPath, outputPath); err != nil {
			return nil, err
		}
	}

	processedDuration, err := r.media.Duration(ctx, outputPath)
	if err != nil {
		return nil, err
	}

	var size uint64
	if info, err := os.Stat(outputPath); err == nil {
		size = uint64(info.Size())
	}

	var percentage float64
	if originalDuration > 0 {
		percentage = totalSilence / originalDuration * 100
	}

	return &Result{
		OutputPath: outputPath,
		Transcript: transcript.Transcript{Segments: res.Segments, Language: res.Language},
		Stats: Stats{
			OriginalDuration:       originalDuration,
			OriginalSizeBytes:      size,
			ProcessedDuration:      processedDuration,
			RemovedSilenceDuration: totalSilence,
			SilencePercentage:      percentage,
		},
	}, nil
}

// emit applies the event to the tracker and fans it out to stream viewers.
func (r *Runner) emit(runID string, ev Event) {
	r.tracker.Apply(runID, ev)
	r.bus.Publish(runID, ev)
}

func (r *Runner) recordRun(ctx context.Context, run *RunRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.UpsertRun(ctx, run); err != nil {
		log.Error("Failed to persist run %s: %v", run.ID, err)
	}
}

// OutputPath derives the edited-output filename next to the input.
func OutputPath(inputPath string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(inputPath, ".mp4"), ".MP4")
	return base + "_edited.mp4"
}

// removeTempFiles drops the intermediates a run leaves next to the input.
func removeTempFiles(inputPath string) {
	_ = os.Remove(inputPath + ".pcm")
	_ = os.Remove(inputPath + ".enhanced.aac")
}

var _ MediaOps = media.FFmpeg{}

// Temp intermediates use these suffixes; the janitor sweeps the same set.
var TempSuffixes = []string{".pcm", ".enhanced.aac"}

func fmtRanges(ranges []transcript.KeepRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("(%.2f,%.2f)", r.Start, r.End)
	}
	return strings.Join(parts, " ")
}
