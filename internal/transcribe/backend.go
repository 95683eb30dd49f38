// Package transcribe produces word-timed transcripts for recordings. A
// Backend handles the actual speech recognition; the Service wraps it with
// audio extraction, language handling, optional correction, and coalescing
// of duplicate requests.
package transcribe

import (
	"context"

	"github.com/wordcut/wordcut/internal/transcript"
)

// Backend is one speech recognition engine. audioPath points at raw PCM or
// any container the engine accepts. language is an ISO 639-1 hint and may be
// empty for auto-detection.
type Backend interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Output, error)
}

// Output is the raw engine result before the Service fills in identity and
// duration.
type Output struct {
	Segments []transcript.Segment
	Language string
}
