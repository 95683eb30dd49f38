package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/wordcut/wordcut/internal/exporter"
	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/internal/transcribe"
	"github.com/wordcut/wordcut/pkg/log"
)

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

type transcribeRequest struct {
	InputPath string `json:"input_path"`
	Language  string `json:"language,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InputPath == "" {
		writeError(w, http.StatusBadRequest, "input_path is required")
		return
	}

	if err := s.ctrl.SetTranscribing(true); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer func() {
		if err := s.ctrl.SetTranscribing(false); err != nil {
			log.Warn("Could not clear transcribing flag: %v", err)
		}
	}()

	// remember which session generation asked, so a reset or a newer
	// transcription that finished meanwhile wins over this result
	epoch := s.ctrl.Epoch()

	res, err := s.trans.Transcribe(r.Context(), req.InputPath, req.Language, nil)
	if err != nil {
		switch {
		case errors.Is(err, transcribe.ErrInputNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	if !s.ctrl.LoadTranscriptIf(epoch, res) {
		writeError(w, http.StatusConflict, "session superseded while transcribing")
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleWordAction serves POST /api/session/words/{id}/{toggle|delete|restore}.
func (s *Server) handleWordAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/session/words/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	wordID, action := parts[0], parts[1]
	if decoded, err := url.PathUnescape(wordID); err == nil {
		wordID = decoded
	}
	if wordID == "" {
		writeError(w, http.StatusBadRequest, "missing word id")
		return
	}

	var err error
	switch action {
	case "toggle":
		_, err = s.ctrl.ToggleWord(wordID)
	case "delete":
		err = s.ctrl.DeleteWord(wordID)
	case "restore":
		err = s.ctrl.RestoreWord(wordID)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleRestoreAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.ctrl.RestoreAll()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

type timeRequest struct {
	Time float64 `json:"time"`
}

type timeResponse struct {
	CurrentTime  float64 `json:"current_time"`
	ActiveWordID string  `json:"active_word_id,omitempty"`
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req timeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.ctrl.SetCurrentTime(req.Time)
	writeJSON(w, http.StatusOK, timeResponse{
		CurrentTime:  s.ctrl.CurrentTime(),
		ActiveWordID: s.ctrl.ActiveWordID(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.ctrl.Reset()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

type exportRequest struct {
	EnhanceAudio bool   `json:"enhance_audio"`
	OutputPath   string `json:"output_path,omitempty"`
}

type startedResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runID, err := s.export.Start(r.Context(), exporter.Options{
		EnhanceAudio: req.EnhanceAudio,
		OutputPath:   req.OutputPath,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startedResponse{RunID: runID})
}

type pipelineRequest struct {
	InputPath string           `json:"input_path"`
	Config    *pipeline.Config `json:"config,omitempty"`
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.tracker.Snapshot())
	case http.MethodPost:
		var req pipelineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.InputPath == "" {
			writeError(w, http.StatusBadRequest, "input_path is required")
			return
		}
		cfg := s.defaultRunConfig
		if req.Config != nil {
			cfg = *req.Config
		}
		runID := s.runner.Start(r.Context(), req.InputPath, cfg)
		writeJSON(w, http.StatusAccepted, startedResponse{RunID: runID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	FFmpegVersion string `json:"ffmpeg_version,omitempty"`
	FFmpegError   string `json:"ffmpeg_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := healthResponse{Status: "ok"}
	if s.prober != nil {
		version, err := s.prober.Version(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.FFmpegError = err.Error()
		} else {
			resp.FFmpegVersion = version
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history not enabled")
		return
	}
	runs, err := s.store.ListRuns(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// writeSessionError maps domain errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoTranscript):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrUnknownWord):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exporter.ErrNothingToExport):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
