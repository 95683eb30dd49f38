// Package pipeline tracks a multi-stage processing run (transcription,
// silence handling, export) as a stream of lifecycle events folded into
// per-stage state, and provides the runner that produces such a stream for
// the automatic ffmpeg pipeline.
package pipeline

import (
	"errors"

	"github.com/wordcut/wordcut/internal/transcript"
)

// Event is one reported lifecycle transition. Exactly one field is set.
// The wire shape is a single-key object keyed by the variant name, e.g.
// {"StageStarted":{"stage":"transcribe"}}, which falls out of the
// omitempty pointer fields.
type Event struct {
	StageStarted      *StageStartedPayload   `json:"StageStarted,omitempty"`
	StageProgress     *StageProgressPayload  `json:"StageProgress,omitempty"`
	StageCompleted    *StageCompletedPayload `json:"StageCompleted,omitempty"`
	StageFailed       *StageFailedPayload    `json:"StageFailed,omitempty"`
	PipelineCompleted *CompletedPayload      `json:"PipelineCompleted,omitempty"`
	PipelineFailed    *FailedPayload         `json:"PipelineFailed,omitempty"`
}

type StageStartedPayload struct {
	Stage string `json:"stage"`
}

type StageProgressPayload struct {
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
}

type StageCompletedPayload struct {
	Stage string `json:"stage"`
}

type StageFailedPayload struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type CompletedPayload struct {
	Result Result `json:"result"`
}

type FailedPayload struct {
	Error string `json:"error"`
}

func StageStarted(stage string) Event {
	return Event{StageStarted: &StageStartedPayload{Stage: stage}}
}

func StageProgress(stage string, progress float64) Event {
	return Event{StageProgress: &StageProgressPayload{Stage: stage, Progress: progress}}
}

func StageCompleted(stage string) Event {
	return Event{StageCompleted: &StageCompletedPayload{Stage: stage}}
}

func StageFailed(stage, errMsg string) Event {
	return Event{StageFailed: &StageFailedPayload{Stage: stage, Error: errMsg}}
}

func PipelineCompleted(result Result) Event {
	return Event{PipelineCompleted: &CompletedPayload{Result: result}}
}

func PipelineFailed(errMsg string) Event {
	return Event{PipelineFailed: &FailedPayload{Error: errMsg}}
}

// ErrMalformedEvent reports an event that does not carry exactly one variant.
var ErrMalformedEvent = errors.New("pipeline: event must carry exactly one variant")

// Validate checks the exactly-one-variant invariant.
func (e Event) Validate() error {
	n := 0
	if e.StageStarted != nil {
		n++
	}
	if e.StageProgress != nil {
		n++
	}
	if e.StageCompleted != nil {
		n++
	}
	if e.StageFailed != nil {
		n++
	}
	if e.PipelineCompleted != nil {
		n++
	}
	if e.PipelineFailed != nil {
		n++
	}
	if n != 1 {
		return ErrMalformedEvent
	}
	return nil
}

// Result carries the final output identity and statistics of a run.
type Result struct {
	OutputPath string                `json:"output_path"`
	Transcript transcript.Transcript `json:"transcript"`
	Stats      Stats                 `json:"stats"`
}

// Stats are computed locally from durations and the output file, never
// trusted from the encoder.
type Stats struct {
	OriginalDuration       float64 `json:"original_duration"`
	OriginalSizeBytes      uint64  `json:"original_size_bytes"`
	ProcessedDuration      float64 `json:"processed_duration"`
	RemovedSilenceDuration float64 `json:"removed_silence_duration"`
	SilencePercentage      float64 `json:"silence_percentage"`
}
