package session

import (
	"math"

	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/log"
)

// ResumeGuard suppresses a skip when the reported position is within this
// distance of the last commanded seek, so a jump that lands on the edge of
// the same or an adjacent deleted interval cannot loop. It shares its value
// with transcript.MergeGap by coincidence, not by coupling.
const ResumeGuard = 0.1

// Syncer keeps an external playback surface out of deleted material. It is
// purely reactive: the surface reports its position, Tick decides whether a
// jump is needed and where to land. One Syncer serves one surface.
type Syncer struct {
	ctrl         *Controller
	lastSeekTime float64
}

func NewSyncer(ctrl *Controller) *Syncer {
	// Start far from any plausible position so the first tick is never guarded.
	return &Syncer{ctrl: ctrl, lastSeekTime: math.Inf(-1)}
}

// Tick handles one playback position report. Returns the target time and
// true when the surface must jump. The reported position always becomes
// the session's current time, jump or not.
func (s *Syncer) Tick(time float64, paused bool) (float64, bool) {
	s.ctrl.SetCurrentTime(time)

	if paused {
		// the user may scrub freely through deleted material
		return 0, false
	}

	segments, deleted := s.ctrl.playbackState()
	if len(deleted) == 0 {
		return 0, false
	}

	word := transcript.DeletedWordAt(segments, deleted, time)
	if word == nil {
		return 0, false
	}

	if math.Abs(time-s.lastSeekTime) <= ResumeGuard {
		return 0, false
	}

	next := transcript.NextKeepTime(segments, deleted, word.End)
	s.lastSeekTime = next
	log.Debug("Skipping deleted word %s: %.3f -> %.3f", word.ID, time, next)
	return next, true
}
