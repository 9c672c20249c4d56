package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/utils"
)

// TTSService converts reply text into a base64 audio blob the frontend can
// play directly. The voice defaults to a Vietnamese neural voice and can be
// overridden per call or via TTS_VOICE.
type TTSService interface {
	Synthesize(ctx context.Context, text string, voice string) (string, error)
}

type ttsService struct {
	log          *logger.Logger
	ai           AIClient
	defaultVoice string
}

func NewTTSService(log *logger.Logger, ai AIClient) TTSService {
	return &ttsService{
		log:          log.With("service", "TTSService"),
		ai:           ai,
		defaultVoice: utils.GetEnv("TTS_VOICE", "vi-VN-HoaiMyNeural", log),
	}
}

func (ts *ttsService) Synthesize(ctx context.Context, text string, voice string) (string, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return "", fmt.Errorf("no speakable text after cleaning")
	}
	if voice == "" {
		voice = ts.defaultVoice
	}

	audio, err := ts.ai.SynthesizeSpeech(ctx, cleaned, voice)
	if err != nil {
		return "", fmt.Errorf("speech synthesis failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

// Markup and emoji characters destabilize synthesis, so only word characters,
// whitespace, and basic punctuation survive.
var ttsUnsafeRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()]`)

func CleanText(text string) string {
	text = ttsUnsafeRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
