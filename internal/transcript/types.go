// Package transcript holds the timed transcript model and the pure
// time-range algorithms derived from it: which intervals of a recording to
// keep once some words are marked deleted, and where playback may land.
package transcript

// Word is the minimal timed transcript unit. Start and End are seconds from
// the beginning of the recording; Start <= End. Words are immutable once
// produced by the transcription engine.
type Word struct {
	ID    string  `json:"id"`
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment groups consecutive words, roughly one sentence. Words may be
// empty when the engine did not produce word-level timing.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

// Result is the full transcription outcome handed to the editor.
type Result struct {
	Segments        []Segment `json:"segments"`
	Words           []Word    `json:"words"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	InputPath       string    `json:"input_path"`
}

// KeepRange is a derived interval of the recording to retain, start < end.
type KeepRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r KeepRange) Duration() float64 { return r.End - r.Start }

// TotalDuration sums the lengths of all ranges.
func TotalDuration(ranges []KeepRange) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}

// DeletionSet is the set of word identifiers currently marked deleted.
type DeletionSet map[string]struct{}

func NewDeletionSet() DeletionSet { return make(DeletionSet) }

func (d DeletionSet) Has(id string) bool {
	_, ok := d[id]
	return ok
}

func (d DeletionSet) Add(id string)    { d[id] = struct{}{} }
func (d DeletionSet) Remove(id string) { delete(d, id) }

// Toggle flips membership and reports whether id is deleted afterwards.
func (d DeletionSet) Toggle(id string) bool {
	if d.Has(id) {
		delete(d, id)
		return false
	}
	d[id] = struct{}{}
	return true
}

func (d DeletionSet) Len() int { return len(d) }

func (d DeletionSet) Clone() DeletionSet {
	out := make(DeletionSet, len(d))
	for id := range d {
		out[id] = struct{}{}
	}
	return out
}
