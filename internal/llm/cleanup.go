package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/log"
)

const cleanupSystemPrompt = "You are a transcription correction assistant. " +
	"Fix word fragments and spelling errors in transcriptions while maintaining " +
	"the same word count and timing."

const cleanupUserPrompt = `Fix this transcription from a speech recognition engine. It has word fragments that need to be joined:

Rules:
1. Join word fragments (e.g., "dis pos itivo" -> "dispositivo", "nego cios" -> "negocios")
2. Fix obvious spelling errors
3. Keep the same approximate word count (don't add or remove content)
4. Minimal punctuation
5. Return ONLY the corrected text, no explanations

Original: %s

Corrected:`

// Cleaner repairs fragmented transcription output with a correction model.
// The cleaned text is laid back over the original segment timing, so the
// editor keeps exact per-segment timestamps even after words are rejoined.
type Cleaner struct {
	client *Client
}

func NewCleaner(client *Client) *Cleaner {
	return &Cleaner{client: client}
}

// CleanSegments sends the joined transcript text for correction and maps the
// corrected words back onto the original segments. On any failure the
// original segments are returned untouched, never an error: cleanup is a
// quality improvement, not a requirement.
func (c *Cleaner) CleanSegments(ctx context.Context, segments []transcript.Segment) []transcript.Segment {
	if len(segments) == 0 {
		return segments
	}

	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	fullText := strings.Join(parts, " ")

	cleaned, err := c.client.SimpleChat(ctx, fmt.Sprintf(cleanupUserPrompt, fullText), cleanupSystemPrompt)
	if err != nil {
		log.Warn("Transcript cleanup failed, keeping raw transcript: %v", err)
		return segments
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		log.Warn("Transcript cleanup returned empty text, keeping raw transcript")
		return segments
	}

	log.Info("Transcript cleanup: %d chars in, %d chars out", len(fullText), len(cleaned))
	return redistribute(segments, cleaned)
}

// redistribute lays the cleaned words back over the original segments. Each
// segment takes as many cleaned words as it originally had, and timestamps
// are spread evenly across the segment, since the word boundaries shifted
// during correction.
func redistribute(original []transcript.Segment, cleanedText string) []transcript.Segment {
	cleanedWords := strings.Fields(cleanedText)

	result := make([]transcript.Segment, 0, len(original))
	wordIndex := 0

	for _, seg := range original {
		count := len(seg.Words)
		if wordIndex+count > len(cleanedWords) {
			count = len(cleanedWords) - wordIndex
		}
		if count <= 0 {
			// ran out of cleaned words, keep the tail as it was
			result = append(result, seg)
			continue
		}

		words := cleanedWords[wordIndex : wordIndex+count]
		timePerWord := (seg.End - seg.Start) / float64(len(words))

		segWords := make([]transcript.Word, len(words))
		for i, w := range words {
			start := seg.Start + float64(i)*timePerWord
			segWords[i] = transcript.Word{
				ID:    fmt.Sprintf("w%d", wordIndex+i),
				Word:  w,
				Start: start,
				End:   start + timePerWord,
			}
		}

		result = append(result, transcript.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.Join(words, " "),
			Words: segWords,
		})
		wordIndex += len(words)
	}

	return result
}
