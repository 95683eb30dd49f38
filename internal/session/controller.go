// Package session owns the mutable state of one editing session: the loaded
// transcript, the set of deleted words, and the playback position. All
// mutation goes through the Controller; consumers only ever see snapshots,
// and derived values (keep ranges, active word) are recomputed from source
// state on every read rather than cached.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wordcut/wordcut/internal/transcript"
)

var (
	ErrNoTranscript = errors.New("session: no transcript loaded")
	ErrBusy         = errors.New("session: operation already in progress")
	ErrUnknownWord  = errors.New("session: unknown word id")
)

// Controller holds the editing session. A session begins when a transcript
// is loaded and ends on Reset (back navigation or a finished export).
type Controller struct {
	mu           sync.RWMutex
	result       *transcript.Result
	deleted      transcript.DeletionSet
	currentTime  float64
	epoch        uint64
	transcribing bool
	exporting    bool
}

func NewController() *Controller {
	return &Controller{deleted: transcript.NewDeletionSet()}
}

// LoadTranscript seeds a fresh session: deletions cleared, time zeroed.
// Any async work started against the previous session is superseded.
func (c *Controller) LoadTranscript(res *transcript.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = res
	c.deleted = transcript.NewDeletionSet()
	c.currentTime = 0
	c.epoch++
}

// LoadTranscriptIf applies the result only when the session has not been
// superseded since epoch was observed. Returns false for stale results.
func (c *Controller) LoadTranscriptIf(epoch uint64, res *transcript.Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.result = res
	c.deleted = transcript.NewDeletionSet()
	c.currentTime = 0
	c.epoch++
	return true
}

// Epoch identifies the current session generation. Capture it before
// starting async work and pass it to LoadTranscriptIf.
func (c *Controller) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Reset clears everything and supersedes in-flight async work.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
	c.deleted = transcript.NewDeletionSet()
	c.currentTime = 0
	c.epoch++
}

// ToggleWord flips the deletion state of a word and reports whether it is
// deleted afterwards.
func (c *Controller) ToggleWord(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkWordLocked(id); err != nil {
		return false, err
	}
	return c.deleted.Toggle(id), nil
}

func (c *Controller) DeleteWord(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkWordLocked(id); err != nil {
		return err
	}
	c.deleted.Add(id)
	return nil
}

func (c *Controller) RestoreWord(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkWordLocked(id); err != nil {
		return err
	}
	c.deleted.Remove(id)
	return nil
}

// RestoreAll clears the deletion set.
func (c *Controller) RestoreAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = transcript.NewDeletionSet()
}

// SetCurrentTime records the playback position. Manual seeks land here
// directly; they bypass the skip logic but still drive highlighting.
func (c *Controller) SetCurrentTime(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
}

func (c *Controller) CurrentTime() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

// KeepRanges derives the minimal ordered keep ranges from the current
// transcript and deletion set.
func (c *Controller) KeepRanges() []transcript.KeepRange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil
	}
	return transcript.DeriveKeepRanges(c.result.Segments, c.deleted)
}

// ActiveWordID is the word under the playhead, or "".
func (c *Controller) ActiveWordID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return ""
	}
	if w := transcript.WordAt(c.result.Segments, c.currentTime); w != nil {
		return w.ID
	}
	return ""
}

func (c *Controller) DeletionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deleted.Len()
}

// SetTranscribing guards the transcription flag; starting while one is in
// flight is refused.
func (c *Controller) SetTranscribing(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on && c.transcribing {
		return fmt.Errorf("%w: transcription", ErrBusy)
	}
	c.transcribing = on
	return nil
}

func (c *Controller) SetExporting(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on && c.exporting {
		return fmt.Errorf("%w: export", ErrBusy)
	}
	c.exporting = on
	return nil
}

// ExportInputs returns everything the exporter needs in one consistent
// read: input identity, derived keep ranges, and the loaded result.
func (c *Controller) ExportInputs() (string, []transcript.KeepRange, *transcript.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return "", nil, nil, ErrNoTranscript
	}
	ranges := transcript.DeriveKeepRanges(c.result.Segments, c.deleted)
	return c.result.InputPath, ranges, c.result, nil
}

// playbackState hands the sync engine a consistent snapshot of what it
// needs per tick.
func (c *Controller) playbackState() ([]transcript.Segment, transcript.DeletionSet) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil, nil
	}
	return c.result.Segments, c.deleted.Clone()
}

// View is the derived read model exposed to the UI.
type View struct {
	Loaded          bool                   `json:"loaded"`
	InputPath       string                 `json:"input_path,omitempty"`
	Segments        []transcript.Segment   `json:"segments,omitempty"`
	DurationSeconds float64                `json:"duration_seconds,omitempty"`
	CurrentTime     float64                `json:"current_time"`
	ActiveWordID    string                 `json:"active_word_id,omitempty"`
	DeletedWordIDs  []string               `json:"deleted_word_ids"`
	DeletionCount   int                    `json:"deletion_count"`
	KeepRanges      []transcript.KeepRange `json:"keep_ranges"`
	Transcribing    bool                   `json:"transcribing"`
	Exporting       bool                   `json:"exporting"`
}

// Snapshot assembles the whole view in one lock acquisition.
func (c *Controller) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := View{
		CurrentTime:    c.currentTime,
		DeletedWordIDs: make([]string, 0, c.deleted.Len()),
		Transcribing:   c.transcribing,
		Exporting:      c.exporting,
	}
	if c.result == nil {
		return view
	}

	view.Loaded = true
	view.InputPath = c.result.InputPath
	view.Segments = c.result.Segments
	view.DurationSeconds = c.result.DurationSeconds
	view.DeletionCount = c.deleted.Len()
	view.KeepRanges = transcript.DeriveKeepRanges(c.result.Segments, c.deleted)
	if w := transcript.WordAt(c.result.Segments, c.currentTime); w != nil {
		view.ActiveWordID = w.ID
	}
	// deterministic order for the UI
	for _, seg := range c.result.Segments {
		for _, w := range seg.Words {
			if c.deleted.Has(w.ID) {
				view.DeletedWordIDs = append(view.DeletedWordIDs, w.ID)
			}
		}
	}
	return view
}

func (c *Controller) checkWordLocked(id string) error {
	if c.result == nil {
		return ErrNoTranscript
	}
	for _, seg := range c.result.Segments {
		for _, w := range seg.Words {
			if w.ID == id {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownWord, id)
}
