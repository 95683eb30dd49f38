// Package config loads application configuration from environment
// variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Server:
// - HTTP_ADDR: Listen address (default: :8722)
// - DATA_DIR: Directory for the run database (default: ./data)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - SENTRY_DSN: Error reporting DSN (optional)
//
// Media:
// - FFMPEG_CMD: ffmpeg binary (default: ffmpeg)
// - VIDEO_CODEC: Output video codec (default: libx264)
//
// Transcription:
// - WHISPER_URL: whisper server base URL (default: http://localhost:8780)
// - WHISPER_MODEL: Model name, empty for single-model servers
// - WHISPER_TIMEOUT: Request timeout in seconds (default: 600)
//
// LLM cleanup (optional, disabled without an API key):
// - LLM_API_KEY: API key for the correction model
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
//
// Silence handling defaults:
// - SILENCE_THRESHOLD_DB: Detection threshold (default: -30)
// - SILENCE_MIN_DURATION: Minimum silence length in seconds (default: 0.5)
// - CUT_MARGIN: Margin kept around speech in seconds (default: 0.2)
//
// Housekeeping:
// - CLEANUP_CRON: Schedule for temp file sweeps (default: "0 * * * *")
// - CLEANUP_MAX_AGE_HOURS: Sweep files older than this (default: 24)
type Config struct {
	Addr      string `json:"addr"`
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	SentryDSN string `json:"sentry_dsn"`

	FFmpegCmd  string `json:"ffmpeg_cmd"`
	VideoCodec string `json:"video_codec"`

	Whisper WhisperConfig `json:"whisper"`
	LLM     LLMConfig     `json:"llm"`
	Silence SilenceConfig `json:"silence"`
	Cleanup CleanupConfig `json:"cleanup"`
}

// WhisperConfig points at the speech recognition server.
type WhisperConfig struct {
	URL     string `json:"url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// LLMConfig holds the configuration for the transcript correction model.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// Enabled reports whether transcript cleanup is configured.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// SilenceConfig carries the default tuning for automatic runs.
type SilenceConfig struct {
	ThresholdDB float64 `json:"threshold_db"`
	MinDuration float64 `json:"min_duration"`
	CutMargin   float64 `json:"cut_margin"`
}

// CleanupConfig schedules the temp file janitor.
type CleanupConfig struct {
	CronExpr    string `json:"cron_expr"`
	MaxAgeHours int    `json:"max_age_hours"`
}

// NewFromEnv creates a new Config instance from environment variables.
func NewFromEnv() (*Config, error) {
	config := &Config{
		Addr:      getEnvString("HTTP_ADDR", ":8722"),
		DataDir:   getEnvString("DATA_DIR", "./data"),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		SentryDSN: getEnvString("SENTRY_DSN", ""),

		FFmpegCmd:  getEnvString("FFMPEG_CMD", "ffmpeg"),
		VideoCodec: getEnvString("VIDEO_CODEC", "libx264"),

		Whisper: WhisperConfig{
			URL:     getEnvString("WHISPER_URL", "http://localhost:8780"),
			Model:   getEnvString("WHISPER_MODEL", ""),
			Timeout: getEnvInt("WHISPER_TIMEOUT", 600),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
		},
		Silence: SilenceConfig{
			ThresholdDB: getEnvFloat("SILENCE_THRESHOLD_DB", -30),
			MinDuration: getEnvFloat("SILENCE_MIN_DURATION", 0.5),
			CutMargin:   getEnvFloat("CUT_MARGIN", 0.2),
		},
		Cleanup: CleanupConfig{
			CronExpr:    getEnvString("CLEANUP_CRON", "0 * * * *"),
			MaxAgeHours: getEnvInt("CLEANUP_MAX_AGE_HOURS", 24),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Whisper.URL == "" {
		return fmt.Errorf("WHISPER_URL is required")
	}
	if c.Silence.MinDuration <= 0 {
		return fmt.Errorf("SILENCE_MIN_DURATION must be positive")
	}
	if c.Silence.CutMargin < 0 {
		return fmt.Errorf("CUT_MARGIN must not be negative")
	}
	if _, err := cron.ParseStandard(c.Cleanup.CronExpr); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON %q: %w", c.Cleanup.CronExpr, err)
	}
	if c.Cleanup.MaxAgeHours <= 0 {
		return fmt.Errorf("CLEANUP_MAX_AGE_HOURS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
