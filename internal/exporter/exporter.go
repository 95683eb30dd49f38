package exporter

import (
	"context"
	"errors"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/rs/xid"

	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/events"
	"github.com/wordcut/wordcut/pkg/log"
)

// ErrNothingToExport is returned when every word has been deleted and no
// keep range survives.
var ErrNothingToExport = errors.New("no ranges left to export")

// Encoder is the subset of media operations an export needs.
type Encoder interface {
	CutAndExport(ctx context.Context, inputPath string, ranges []transcript.KeepRange, outputPath string, enhance bool) error
}

// Options tune one export.
type Options struct {
	EnhanceAudio bool   `json:"enhance_audio"`
	OutputPath   string `json:"output_path,omitempty"` // derived from the input when empty
}

// Exporter renders the edited session state into a new file. It reports
// progress through the same tracker and bus as the automatic pipeline so
// stream viewers see exports the same way.
type Exporter struct {
	ctrl    *session.Controller
	enc     Encoder
	tracker *pipeline.Tracker
	bus     *events.Bus
	store   pipeline.RunStore // may be nil
}

func New(ctrl *session.Controller, enc Encoder, tracker *pipeline.Tracker, bus *events.Bus, store pipeline.RunStore) *Exporter {
	return &Exporter{ctrl: ctrl, enc: enc, tracker: tracker, bus: bus, store: store}
}

// Start validates the session and launches the export in the background,
// returning its run identity. Only one export may be in flight at a time.
func (e *Exporter) Start(ctx context.Context, opts Options) (string, error) {
	inputPath, ranges, res, err := e.ctrl.ExportInputs()
	if err != nil {
		return "", err
	}
	if len(ranges) == 0 {
		return "", ErrNothingToExport
	}
	if err := e.ctrl.SetExporting(true); err != nil {
		return "", err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = pipeline.OutputPath(inputPath)
	}

	// the render outlives the request that started it
	ctx = context.WithoutCancel(ctx)

	runID := xid.New().String()
	e.tracker.StartRun(runID)
	e.recordRun(ctx, &pipeline.RunRecord{
		ID:        runID,
		Kind:      pipeline.RunKindExport,
		InputPath: inputPath,
		Status:    pipeline.RunStatusRunning,
	})

	go e.run(ctx, runID, inputPath, outputPath, ranges, res, opts)
	return runID, nil
}

func (e *Exporter) run(ctx context.Context, runID, inputPath, outputPath string,
	ranges []transcript.KeepRange, res *transcript.Result, opts Options) {

	result, err := e.render(ctx, runID, inputPath, outputPath, ranges, res, opts)
	if err != nil {
		log.Error("Export %s failed: %v", runID, err)
		sentry.CaptureException(err)
		e.emit(runID, pipeline.PipelineFailed(err.Error()))
		e.recordRun(ctx, &pipeline.RunRecord{
			ID:        runID,
			Kind:      pipeline.RunKindExport,
			InputPath: inputPath,
			Status:    pipeline.RunStatusFailed,
			Error:     err.Error(),
		})
		if err := e.ctrl.SetExporting(false); err != nil {
			log.Warn("Could not clear exporting flag: %v", err)
		}
		return
	}

	log.Info("Export %s completed: %s (%s)", runID, result.OutputPath,
		humanize.Bytes(result.Stats.OriginalSizeBytes))
	e.emit(runID, pipeline.PipelineCompleted(*result))
	e.recordRun(ctx, &pipeline.RunRecord{
		ID:         runID,
		Kind:       pipeline.RunKindExport,
		InputPath:  inputPath,
		OutputPath: result.OutputPath,
		Status:     pipeline.RunStatusCompleted,
		Stats:      result.Stats,
	})

	// a finished export closes the editing session
	if err := e.ctrl.SetExporting(false); err != nil {
		log.Warn("Could not clear exporting flag: %v", err)
	}
	e.ctrl.Reset()
}

func (e *Exporter) render(ctx context.Context, runID, inputPath, outputPath string,
	ranges []transcript.KeepRange, res *transcript.Result, opts Options) (*pipeline.Result, error) {

	// the transcript already knows how long the recording is
	originalDuration := res.DurationSeconds

	e.emit(runID, pipeline.StageStarted(pipeline.StageExport))
	if err := e.enc.CutAndExport(ctx, inputPath, ranges, outputPath, opts.EnhanceAudio); err != nil {
		e.emit(runID, pipeline.StageFailed(pipeline.StageExport, err.Error()))
		return nil, err
	}
	e.emit(runID, pipeline.StageCompleted(pipeline.StageExport))

	kept := transcript.TotalDuration(ranges)
	removed := originalDuration - kept
	if removed < 0 {
		removed = 0
	}

	var size uint64
	if info, err := os.Stat(outputPath); err == nil {
		size = uint64(info.Size())
	}

	var percentage float64
	if originalDuration > 0 {
		percentage = removed / originalDuration * 100
	}

	return &pipeline.Result{
		OutputPath: outputPath,
		Transcript: transcript.Transcript{Segments: res.Segments, Language: res.Language},
		Stats: pipeline.Stats{
			OriginalDuration:       originalDuration,
			OriginalSizeBytes:      size,
			ProcessedDuration:      kept,
			RemovedSilenceDuration: removed,
			SilencePercentage:      percentage,
		},
	}, nil
}

func (e *Exporter) emit(runID string, ev pipeline.Event) {
	e.tracker.Apply(runID, ev)
	e.bus.Publish(runID, ev)
}

func (e *Exporter) recordRun(ctx context.Context, run *pipeline.RunRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.UpsertRun(ctx, run); err != nil {
		log.Error("Failed to persist run %s: %v", run.ID, err)
	}
}
