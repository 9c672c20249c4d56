package services

import (
	"context"
	"testing"

	"github.com/ebooklab/teaching-backend/internal/logger"
)

func nopLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}

// fakeAI scripts the completion/synthesis results for a test.
type fakeAI struct {
	completeText string
	completeErr  error
	audio        []byte
	audioErr     error

	completeCalls int
	lastSystem    string
	lastUser      string
	lastCfg       SamplingConfig
}

func (f *fakeAI) Complete(ctx context.Context, system string, user string, cfg SamplingConfig) (string, error) {
	f.completeCalls++
	f.lastSystem = system
	f.lastUser = user
	f.lastCfg = cfg
	return f.completeText, f.completeErr
}

func (f *fakeAI) SynthesizeSpeech(ctx context.Context, text string, voice string) ([]byte, error) {
	return f.audio, f.audioErr
}
