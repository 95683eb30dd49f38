// Package httpapi exposes the editing session, the automatic pipeline, and
// run history over HTTP, with an SSE stream for pipeline events and a
// websocket for playback synchronization.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/wordcut/wordcut/internal/exporter"
	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/events"
)

type transcriber interface {
	Transcribe(ctx context.Context, inputPath, language string, progress func(float64)) (*transcript.Result, error)
}

type exportStarter interface {
	Start(ctx context.Context, opts exporter.Options) (string, error)
}

type runStarter interface {
	Start(ctx context.Context, inputPath string, cfg pipeline.Config) string
}

type versionProber interface {
	Version(ctx context.Context) (string, error)
}

type Server struct {
	ctrl    *session.Controller
	trans   transcriber
	export  exportStarter
	runner  runStarter
	tracker *pipeline.Tracker
	bus     *events.Bus
	store   pipeline.RunStore // may be nil
	prober  versionProber     // may be nil

	defaultRunConfig pipeline.Config

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithRunStore enables the run history endpoint.
func WithRunStore(store pipeline.RunStore) Option {
	return func(s *Server) { s.store = store }
}

// WithVersionProber lets the health endpoint report the ffmpeg version.
func WithVersionProber(p versionProber) Option {
	return func(s *Server) { s.prober = p }
}

// WithDefaultRunConfig overrides the tuning used when a pipeline request
// leaves fields unset.
func WithDefaultRunConfig(cfg pipeline.Config) Option {
	return func(s *Server) { s.defaultRunConfig = cfg }
}

func NewServer(ctrl *session.Controller, trans transcriber, export exportStarter,
	runner runStarter, tracker *pipeline.Tracker, bus *events.Bus, opts ...Option) *Server {

	s := &Server{
		ctrl:             ctrl,
		trans:            trans,
		export:           export,
		runner:           runner,
		tracker:          tracker,
		bus:              bus,
		defaultRunConfig: pipeline.DefaultConfig(),
		mux:              http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/session/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("/api/session/words/", s.handleWordAction)
	s.mux.HandleFunc("/api/session/restore-all", s.handleRestoreAll)
	s.mux.HandleFunc("/api/session/time", s.handleTime)
	s.mux.HandleFunc("/api/session/reset", s.handleReset)
	s.mux.HandleFunc("/api/session/export", s.handleExport)
	s.mux.HandleFunc("/api/session/sync", s.handleSync)
	s.mux.HandleFunc("/api/pipeline", s.handlePipeline)
	s.mux.HandleFunc("/api/pipeline/stream", s.handlePipelineStream)
	s.mux.HandleFunc("/api/runs", s.handleListRuns)
	s.mux.HandleFunc("/api/health", s.handleHealth)
}
