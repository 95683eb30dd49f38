package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/wordcut/wordcut/internal/cleanup"
	"github.com/wordcut/wordcut/internal/config"
	"github.com/wordcut/wordcut/internal/exporter"
	"github.com/wordcut/wordcut/internal/httpapi"
	"github.com/wordcut/wordcut/internal/llm"
	"github.com/wordcut/wordcut/internal/media"
	"github.com/wordcut/wordcut/internal/persistence"
	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/internal/transcribe"
	"github.com/wordcut/wordcut/pkg/events"
	"github.com/wordcut/wordcut/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Warn("Sentry init failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	store, err := persistence.NewSQLiteStore(filepath.Join(cfg.DataDir, "wordcut.db"))
	if err != nil {
		log.Fatal("Failed to open run store: %v", err)
	}
	defer store.Close()

	ffmpeg := media.New(cfg.FFmpegCmd, cfg.VideoCodec)

	var cleaner transcribe.Cleaner
	if cfg.LLM.Enabled() {
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			log.Fatal("Failed to create LLM client: %v", err)
		}
		cleaner = llm.NewCleaner(client)
		log.Info("Transcript cleanup enabled with model %s", cfg.LLM.Model)
	}

	backend := transcribe.NewWhisperServer(cfg.Whisper.URL, cfg.Whisper.Model,
		time.Duration(cfg.Whisper.Timeout)*time.Second)
	transcriber := transcribe.NewService(ffmpeg, backend, cleaner)

	bus := events.NewBus()
	tracker := pipeline.NewTracker()
	ctrl := session.NewController()

	runner := pipeline.NewRunner(ffmpeg, transcriber, tracker, bus, store)
	export := exporter.New(ctrl, ffmpeg, tracker, bus, store)

	c := cron.New()
	sweeper := cleanup.NewSweeper([]string{cfg.DataDir},
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour)
	if err := sweeper.Schedule(c, cfg.Cleanup.CronExpr); err != nil {
		log.Fatal("Failed to schedule cleanup: %v", err)
	}
	c.Start()
	defer c.Stop()

	srv := httpapi.NewServer(ctrl, transcriber, export, runner, tracker, bus,
		httpapi.WithRunStore(store),
		httpapi.WithVersionProber(ffmpeg),
		httpapi.WithDefaultRunConfig(pipeline.Config{
			EnhanceAudio:       true,
			CutSilences:        true,
			SilenceThresholdDB: cfg.Silence.ThresholdDB,
			SilenceMinDuration: cfg.Silence.MinDuration,
			CutMargin:          cfg.Silence.CutMargin,
		}))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Addr)
		errCh <- srv.ListenAndServe(cfg.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("Server failed: %v", err)
	case sig := <-stop:
		log.Info("Shutting down on %s", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error: %v", err)
	}
}
