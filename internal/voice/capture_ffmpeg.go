package voice

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/utils"
)

// FFmpegCapturer records short raw LINEAR16 chunks from the default
// microphone through ffmpeg. The input device family depends on the host OS.
type FFmpegCapturer struct {
	log        *logger.Logger
	binary     string
	available  bool
	device     string
	format     string
	chunkSecs  int
	sampleRate int
}

func NewFFmpegCapturer(log *logger.Logger) *FFmpegCapturer {
	clog := log.With("service", "FFmpegCapturer")
	bin, err := exec.LookPath("ffmpeg")

	return &FFmpegCapturer{
		log:        clog,
		binary:     bin,
		available:  err == nil,
		device:     utils.GetEnv("VOICE_INPUT_DEVICE", "default", clog),
		format:     utils.GetEnv("VOICE_INPUT_FORMAT", defaultInputFormat(), clog),
		chunkSecs:  utils.GetEnvAsInt("VOICE_CHUNK_SECONDS", 5, clog),
		sampleRate: utils.GetEnvAsInt("STT_SAMPLE_RATE", 16000, clog),
	}
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func (c *FFmpegCapturer) Available() bool { return c.available }

func (c *FFmpegCapturer) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.chunkSecs+10)*time.Second)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", c.format,
		"-i", c.device,
		"-t", strconv.Itoa(c.chunkSecs),
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-",
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}
