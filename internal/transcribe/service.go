package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/log"
)

// ErrInputNotFound reports a recording path that does not exist.
var ErrInputNotFound = errors.New("input recording not found")

// Extractor pulls a mono PCM track out of a recording for the speech engine.
type Extractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) error
	Duration(ctx context.Context, inputPath string) (float64, error)
}

// Cleaner optionally repairs fragmented engine output.
type Cleaner interface {
	CleanSegments(ctx context.Context, segments []transcript.Segment) []transcript.Segment
}

// Service runs the full transcription flow: extract audio, recognize,
// optionally clean up, fill in language and duration. Concurrent requests
// for the same recording are coalesced into one engine call.
type Service struct {
	extractor Extractor
	backend   Backend
	cleaner   Cleaner // may be nil
	group     singleflight.Group
}

func NewService(extractor Extractor, backend Backend, cleaner Cleaner) *Service {
	return &Service{extractor: extractor, backend: backend, cleaner: cleaner}
}

// Transcribe produces the word-timed transcript for inputPath. langHint is
// an optional ISO 639-1 code; an invalid hint is rejected up front rather
// than silently ignored. progress may be nil.
func (s *Service) Transcribe(ctx context.Context, inputPath, langHint string, progress func(float64)) (*transcript.Result, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInputNotFound)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}
	if langHint != "" {
		if _, err := language.Parse(langHint); err != nil {
			return nil, fmt.Errorf("invalid language hint %q: %w", langHint, err)
		}
	}

	v, err, shared := s.group.Do(inputPath+"\x00"+langHint, func() (any, error) {
		return s.transcribe(ctx, inputPath, langHint, progress)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("Coalesced duplicate transcription request for %s", inputPath)
	}
	return v.(*transcript.Result), nil
}

func (s *Service) transcribe(ctx context.Context, inputPath, langHint string, progress func(float64)) (*transcript.Result, error) {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}

	duration, err := s.extractor.Duration(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("probing duration: %w", err)
	}

	pcmPath := inputPath + ".pcm"
	if err := s.extractor.ExtractAudio(ctx, inputPath, pcmPath, 16000, 1); err != nil {
		return nil, fmt.Errorf("extracting audio: %w", err)
	}
	defer os.Remove(pcmPath)
	report(0.5)

	out, err := s.backend.Transcribe(ctx, pcmPath, langHint)
	if err != nil {
		return nil, err
	}
	report(1.0)

	segments := out.Segments
	if s.cleaner != nil {
		segments = s.cleaner.CleanSegments(ctx, segments)
	}

	words := flattenWords(segments)
	lang := resolveLanguage(out.Language, segments)
	log.Info("Transcribed %s: %d segments, %d words, language %q",
		inputPath, len(segments), len(words), lang)

	return &transcript.Result{
		Segments:        segments,
		Words:           words,
		Language:        lang,
		DurationSeconds: duration,
		InputPath:       inputPath,
	}, nil
}

func flattenWords(segments []transcript.Segment) []transcript.Word {
	var words []transcript.Word
	for _, seg := range segments {
		words = append(words, seg.Words...)
	}
	return words
}

// resolveLanguage normalizes whatever the engine reported to an ISO 639-1
// code, falling back to statistical detection on the transcript text when
// the engine reported nothing usable.
func resolveLanguage(reported string, segments []transcript.Segment) string {
	if reported != "" {
		if tag, err := language.Parse(reported); err == nil {
			base, _ := tag.Base()
			return base.String()
		}
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return ""
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
