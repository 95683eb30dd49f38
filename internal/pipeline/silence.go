package pipeline

import (
	"github.com/wordcut/wordcut/internal/media"
	"github.com/wordcut/wordcut/internal/transcript"
)

// BuildKeepRanges turns detected silences into the ranges of the recording
// worth keeping. Each cut is padded by margin seconds on both sides so
// speech onsets are not clipped; the padding never produces overlapping or
// inverted ranges.
func BuildKeepRanges(silences []media.Silence, duration, margin float64) []transcript.KeepRange {
	ranges := make([]transcript.KeepRange, 0, len(silences)+1)
	lastEnd := 0.0

	for _, s := range silences {
		keepEnd := s.Start + margin
		if keepEnd > duration {
			keepEnd = duration
		}
		if keepEnd > lastEnd {
			ranges = append(ranges, transcript.KeepRange{Start: lastEnd, End: keepEnd})
		}

		nextStart := s.End - margin
		if nextStart < 0 {
			nextStart = 0
		}
		if nextStart < keepEnd {
			// margins of a short silence may cross; keep ranges disjoint
			nextStart = keepEnd
		}
		lastEnd = nextStart
	}

	if lastEnd < duration {
		ranges = append(ranges, transcript.KeepRange{Start: lastEnd, End: duration})
	}
	return ranges
}

// TotalSilence sums the detected silence durations.
func TotalSilence(silences []media.Silence) float64 {
	var total float64
	for _, s := range silences {
		total += s.Duration()
	}
	return total
}
