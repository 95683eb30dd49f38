package pipeline

import (
	"sync"

	"github.com/wordcut/wordcut/pkg/log"
)

type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusActive    StageStatus = "active"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
)

// Stage ids, in display order.
const (
	StageTranscribe     = "transcribe"
	StageDetectSilences = "detect_silences"
	StageCutSilences    = "cut_silences"
	StageEnhanceAudio   = "enhance_audio"
	StageExport         = "export"
)

// Stage is one named step of a run with its folded status. Progress is nil
// until a StageStarted or StageProgress event addresses the stage.
type Stage struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Status   StageStatus `json:"status"`
	Progress *float64    `json:"progress,omitempty"`
}

func defaultStages() []Stage {
	return []Stage{
		{ID: StageTranscribe, Label: "Transcribe", Status: StatusPending},
		{ID: StageDetectSilences, Label: "Detect silences", Status: StatusPending},
		{ID: StageCutSilences, Label: "Cut silences", Status: StatusPending},
		{ID: StageEnhanceAudio, Label: "Enhance audio", Status: StatusPending},
		{ID: StageExport, Label: "Export", Status: StatusPending},
	}
}

// Tracker folds the event stream of the current run into per-stage status
// and a run-level outcome. It trusts the event order and does not enforce
// stage sequencing: a StageCompleted for a stage that was never active is
// applied as-is. Events from a superseded run are discarded.
type Tracker struct {
	mu         sync.Mutex
	runID      string
	stages     []Stage
	processing bool
	done       bool
	err        string
	result     *Result
}

// Snapshot is a consistent read-only view of the tracker.
type Snapshot struct {
	RunID      string  `json:"run_id,omitempty"`
	Stages     []Stage `json:"stages"`
	Processing bool    `json:"processing"`
	Done       bool    `json:"done"`
	Error      string  `json:"error,omitempty"`
	Result     *Result `json:"result,omitempty"`
}

func NewTracker() *Tracker {
	return &Tracker{stages: defaultStages()}
}

// StartRun resets every stage to pending, clears any prior result and
// error, and marks the run as processing. Subsequent events must carry
// runID or they are dropped.
func (t *Tracker) StartRun(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = runID
	t.stages = defaultStages()
	t.processing = true
	t.done = false
	t.err = ""
	t.result = nil
}

// Apply folds one event into the tracker. Events tagged with a run other
// than the current one arrive late from a superseded run and are ignored.
func (t *Tracker) Apply(runID string, ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if runID != t.runID {
		log.Debug("discarding event for stale run %s (current %s)", runID, t.runID)
		return
	}

	switch {
	case ev.StageStarted != nil:
		if s := t.stageByID(ev.StageStarted.Stage); s != nil {
			s.Status = StatusActive
			s.Progress = ptr(0)
		}
	case ev.StageProgress != nil:
		if s := t.stageByID(ev.StageProgress.Stage); s != nil {
			s.Status = StatusActive
			// Out-of-range values are accepted as-is; the producer is trusted.
			s.Progress = ptr(ev.StageProgress.Progress)
		}
	case ev.StageCompleted != nil:
		if s := t.stageByID(ev.StageCompleted.Stage); s != nil {
			s.Status = StatusCompleted
			s.Progress = ptr(1)
		}
	case ev.StageFailed != nil:
		if s := t.stageByID(ev.StageFailed.Stage); s != nil {
			s.Status = StatusFailed
		}
		t.err = ev.StageFailed.Error
		t.processing = false
	case ev.PipelineCompleted != nil:
		result := ev.PipelineCompleted.Result
		t.result = &result
		t.done = true
		t.processing = false
	case ev.PipelineFailed != nil:
		t.err = ev.PipelineFailed.Error
		t.done = false
		t.processing = false
	default:
		log.Warn("ignoring malformed pipeline event")
	}
}

// Snapshot returns a deep copy safe for concurrent readers.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	stages := make([]Stage, len(t.stages))
	for i, s := range t.stages {
		stages[i] = s
		if s.Progress != nil {
			stages[i].Progress = ptr(*s.Progress)
		}
	}
	snap := Snapshot{
		RunID:      t.runID,
		Stages:     stages,
		Processing: t.processing,
		Done:       t.done,
		Error:      t.err,
	}
	if t.result != nil {
		result := *t.result
		snap.Result = &result
	}
	return snap
}

func (t *Tracker) stageByID(id string) *Stage {
	for i := range t.stages {
		if t.stages[i].ID == id {
			return &t.stages[i]
		}
	}
	return nil
}

func ptr(v float64) *float64 { return &v }
