package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wordcut/wordcut/internal/transcript"
)

// WhisperServer talks to a whisper.cpp server (or any OpenAI-compatible
// audio transcription endpoint) over multipart HTTP. Word timestamps are
// requested through verbose_json.
type WhisperServer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewWhisperServer builds a backend for the server at baseURL. model may be
// empty when the server hosts a single model.
func NewWhisperServer(baseURL, model string, timeout time.Duration) *WhisperServer {
	return &WhisperServer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// verbose_json wire shapes.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
	Error    *whisperError    `json:"error,omitempty"`
}

type whisperSegment struct {
	ID    int           `json:"id"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []whisperWord `json:"words"`
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperError struct {
	Message string `json:"message"`
}

func (w *WhisperServer) Transcribe(ctx context.Context, audioPath, language string) (*Output, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	}
	if w.model != "" {
		fields["model"] = w.model
	}
	if language != "" {
		fields["language"] = language
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, err
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := w.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription server returned %d: %s", resp.StatusCode, string(responseBody))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing transcription response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("transcription server error: %s", parsed.Error.Message)
	}

	return &Output{
		Segments: convertSegments(parsed.Segments),
		Language: parsed.Language,
	}, nil
}

// convertSegments maps the wire shape onto the editor model, assigning word
// ids globally so they stay unique across segments.
func convertSegments(in []whisperSegment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(in))
	wordIndex := 0
	for _, seg := range in {
		words := make([]transcript.Word, 0, len(seg.Words))
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" || w.End <= w.Start || w.Start < 0 {
				continue
			}
			words = append(words, transcript.Word{
				ID:    fmt.Sprintf("w%d", wordIndex),
				Word:  text,
				Start: w.Start,
				End:   w.End,
			})
			wordIndex++
		}
		out = append(out, transcript.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
			Words: words,
		})
	}
	return out
}
