// Package media wraps the ffmpeg/ffprobe command line tools: duration
// probing, audio extraction for transcription, silence detection, and
// rendering keep-ranges into an output file.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/wordcut/wordcut/internal/transcript"
	"github.com/wordcut/wordcut/pkg/log"
)

// Silence is one detected quiet interval, seconds from the start.
type Silence struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Silence) Duration() float64 { return s.End - s.Start }

// FFmpeg shells out to ffmpeg for all media operations.
type FFmpeg struct {
	ffmpegCmd  string
	videoCodec string
}

// New builds an FFmpeg wrapper. Empty arguments fall back to the ffmpeg on
// PATH and libx264.
func New(ffmpegCmd, videoCodec string) FFmpeg {
	if ffmpegCmd == "" {
		ffmpegCmd = "ffmpeg"
	}
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	return FFmpeg{ffmpegCmd: ffmpegCmd, videoCodec: videoCodec}
}

// Version reports the installed ffmpeg version, e.g. "6.1.1". ffmpeg prints
// the banner on stdout, unlike everything else it reports.
func (ff FFmpeg) Version(ctx context.Context) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	out, err := exec.CommandContext(ctx, cmdPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	return parseVersion(string(out))
}

// Duration probes the media duration in seconds.
func (ff FFmpeg) Duration(ctx context.Context, inputPath string) (float64, error) {
	// ffmpeg prints the container duration on stderr even for a null run.
	stderr, _ := ff.run(ctx, "-i", inputPath, "-t", "0.000001", "-f", "null", "-")
	duration, err := parseDuration(stderr)
	if err != nil {
		return 0, fmt.Errorf("probe duration of %s: %w", inputPath, err)
	}
	return duration, nil
}

// ExtractAudio writes raw little-endian f32 PCM suitable for a speech model.
func (ff FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) error {
	_, err := ff.run(ctx,
		"-i", inputPath,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-y", outputPath,
	)
	if err != nil {
		return fmt.Errorf("extract audio from %s: %w", inputPath, err)
	}
	return nil
}

// DetectSilences runs the silencedetect filter. thresholdDB is already
// negative (e.g. -30).
func (ff FFmpeg) DetectSilences(ctx context.Context, inputPath string, thresholdDB, minDuration float64) ([]Silence, error) {
	filter := fmt.Sprintf("silencedetect=noise=%gdB:d=%g", thresholdDB, minDuration)
	stderr, err := ff.run(ctx, "-i", inputPath, "-af", filter, "-f", "null", "-")
	if err != nil {
		return nil, fmt.Errorf("detect silences in %s: %w", inputPath, err)
	}

	silences := parseSilences(stderr)
	var total float64
	for _, s := range silences {
		total += s.Duration()
	}
	log.Info("Found %d silence segments totaling %.2fs in %s", len(silences), total, inputPath)
	return silences, nil
}

// CutAndExport renders only the keep ranges of the input into outputPath,
// optionally running the audio enhancement chain on the result.
func (ff FFmpeg) CutAndExport(ctx context.Context, inputPath string, ranges []transcript.KeepRange, outputPath string, enhance bool) error {
	keep := keepExpr(ranges)
	videoFilter := fmt.Sprintf("select='%s',setpts=N/FRAME_RATE/TB", keep)
	audioFilter := fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", keep)
	if enhance {
		audioFilter += "," + enhanceChain
	}

	log.Debug("Video filter: %s", videoFilter)
	log.Debug("Audio filter: %s", audioFilter)

	_, err := ff.run(ctx,
		"-i", inputPath,
		"-vf", videoFilter,
		"-af", audioFilter,
		"-c:v", ff.videoCodec,
		"-b:v", "8M",
		"-maxrate", "10M",
		"-bufsize", "16M",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y", outputPath,
	)
	if err != nil {
		return fmt.Errorf("cut and export %s: %w", inputPath, err)
	}
	return nil
}

// enhanceChain denoises and normalises loudness.
const enhanceChain = "afftdn=nf=-25,loudnorm=I=-16:TP=-1.5:LRA=11"

// EnhanceAudio re-encodes audio through the enhancement chain, copying video.
func (ff FFmpeg) EnhanceAudio(ctx context.Context, inputPath, outputPath string) error {
	_, err := ff.run(ctx,
		"-i", inputPath,
		"-af", enhanceChain,
		"-c:v", "copy",
		"-y", outputPath,
	)
	if err != nil {
		return fmt.Errorf("enhance audio of %s: %w", inputPath, err)
	}
	return nil
}

// CopyVideo copies the video stream and re-encodes audio with faststart.
func (ff FFmpeg) CopyVideo(ctx context.Context, inputPath, outputPath string) error {
	_, err := ff.run(ctx,
		"-i", inputPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-movflags", "+faststart",
		"-y", outputPath,
	)
	if err != nil {
		return fmt.Errorf("copy video %s: %w", inputPath, err)
	}
	return nil
}

// run executes ffmpeg and returns its stderr output, where ffmpeg reports
// nearly everything (durations, silencedetect lines).
func (ff FFmpeg) run(ctx context.Context, args ...string) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 512))
	}
	return stderr.String(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}

// keepExpr builds the select expression between(t,a,b)+between(t,c,d)+...
func keepExpr(ranges []transcript.KeepRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("between(t,%g,%g)", r.Start, r.End)
	}
	return strings.Join(parts, "+")
}

var (
	durationPattern     = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d+)`)
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// parseVersion extracts the version token from the "ffmpeg version X" banner.
func parseVersion(output string) (string, error) {
	line, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
		return fields[2], nil
	}
	return "", fmt.Errorf("unrecognized ffmpeg version banner: %q", strings.TrimSpace(line))
}

// parseDuration extracts the Duration: HH:MM:SS.cc header from ffmpeg stderr.
func parseDuration(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		m := durationPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		h, _ := strconv.ParseFloat(m[1], 64)
		mi, _ := strconv.ParseFloat(m[2], 64)
		s, _ := strconv.ParseFloat(m[3], 64)
		frac, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			continue
		}
		// fraction digits vary between builds
		divisor := 1.0
		for range m[4] {
			divisor *= 10
		}
		return h*3600 + mi*60 + s + frac/divisor, nil
	}
	return 0, fmt.Errorf("no duration line in ffmpeg output")
}

// parseSilences pairs silence_start/silence_end lines from silencedetect.
func parseSilences(output string) []Silence {
	silences := make([]Silence, 0)
	var current *float64

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartPattern.FindStringSubmatch(line); m != nil {
			if start, err := strconv.ParseFloat(m[1], 64); err == nil {
				current = &start
			}
		}
		if m := silenceEndPattern.FindStringSubmatch(line); m != nil {
			if end, err := strconv.ParseFloat(m[1], 64); err == nil && current != nil {
				silences = append(silences, Silence{Start: *current, End: end})
				current = nil
			}
		}
	}
	return silences
}
