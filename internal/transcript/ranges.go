package transcript

import "sort"

const (
	// MergeGap is the largest silence between two kept words that still
	// merges them into one keep range.
	MergeGap = 0.1

	// SeekEpsilon nudges a computed landing position just past the end of
	// a deleted interval so the player does not land on its boundary.
	SeekEpsilon = 0.01
)

// DeriveKeepRanges computes the minimal ordered list of time ranges covering
// every word not in deleted. Adjacent word intervals separated by less than
// MergeGap are merged. Returns nil when nothing remains.
func DeriveKeepRanges(segments []Segment, deleted DeletionSet) []KeepRange {
	kept := make([]Word, 0)
	for _, seg := range segments {
		for _, w := range seg.Words {
			if !deleted.Has(w.ID) {
				kept = append(kept, w)
			}
		}
	}
	if len(kept) == 0 {
		return nil
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	ranges := make([]KeepRange, 0, len(kept))
	open := KeepRange{Start: kept[0].Start, End: kept[0].End}
	for _, w := range kept[1:] {
		if w.Start-open.End < MergeGap {
			if w.End > open.End {
				open.End = w.End
			}
			continue
		}
		ranges = append(ranges, open)
		open = KeepRange{Start: w.Start, End: w.End}
	}
	return append(ranges, open)
}

// DeletedWordAt returns the deleted word whose interval contains t, or nil.
// Words do not normally overlap; if they do, the earliest start wins.
func DeletedWordAt(segments []Segment, deleted DeletionSet, t float64) *Word {
	words := deletedWordsByStart(segments, deleted)
	for i := range words {
		if t >= words[i].Start && t <= words[i].End {
			return &words[i]
		}
	}
	return nil
}

// NextKeepTime returns the earliest time >= after+SeekEpsilon that is not
// inside any deleted word's interval. Deleted intervals may chain with no
// gap, so after escaping one the scan restarts from the new position.
func NextKeepTime(segments []Segment, deleted DeletionSet, after float64) float64 {
	words := deletedWordsByStart(segments, deleted)
	check := after + SeekEpsilon

	for moved := true; moved; {
		moved = false
		for _, w := range words {
			if check >= w.Start && check <= w.End {
				check = w.End + SeekEpsilon
				moved = true
			}
		}
	}
	return check
}

// WordAt returns the word whose interval contains t, first match in segment
// order, or nil. Used for active-word highlighting.
func WordAt(segments []Segment, t float64) *Word {
	for _, seg := range segments {
		for i := range seg.Words {
			w := seg.Words[i]
			if t >= w.Start && t <= w.End {
				return &w
			}
		}
	}
	return nil
}

func deletedWordsByStart(segments []Segment, deleted DeletionSet) []Word {
	words := make([]Word, 0, len(deleted))
	for _, seg := range segments {
		for _, w := range seg.Words {
			if deleted.Has(w.ID) {
				words = append(words, w)
			}
		}
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Start < words[j].Start })
	return words
}
