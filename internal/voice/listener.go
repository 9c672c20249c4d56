package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ebooklab/teaching-backend/internal/logger"
)

const queueCapacity = 16

// Recognizer turns a captured audio chunk into text.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Capturer records one chunk of microphone audio. A capture returning no
// data means silence, not an error.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
	Available() bool
}

// Listener runs a background capture-transcribe loop and buffers recognized
// utterances in a bounded queue. When the queue is full the oldest entry is
// dropped so the frontend always polls fresh speech.
type Listener struct {
	log        *logger.Logger
	capturer   Capturer
	recognizer Recognizer

	mu      sync.Mutex
	queue   []string
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewListener(log *logger.Logger, capturer Capturer, recognizer Recognizer) *Listener {
	return &Listener{
		log:        log.With("service", "VoiceListener"),
		capturer:   capturer,
		recognizer: recognizer,
	}
}

// Available reports whether voice input can work at all on this host.
func (l *Listener) Available() bool {
	return l.capturer != nil && l.capturer.Available() && l.recognizer != nil
}

func (l *Listener) Start() error {
	if !l.Available() {
		return fmt.Errorf("voice input not available")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true
	l.queue = nil

	go l.loop(ctx, l.done)
	l.log.Info("voice listening started")
	return nil
}

func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done

	l.mu.Lock()
	l.queue = nil
	l.mu.Unlock()
	l.log.Info("voice listening stopped")
}

// Running reports whether the capture loop is active.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Poll pops the oldest recognized utterance, if any.
func (l *Listener) Poll() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return "", false
	}
	text := l.queue[0]
	l.queue = l.queue[1:]
	return text, true
}

func (l *Listener) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}

		audio, err := l.capturer.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("voice capture failed", "error", err)
			continue
		}
		if len(audio) == 0 {
			continue
		}

		text, err := l.recognizer.Transcribe(ctx, audio)
		if err != nil {
			l.log.Warn("voice transcription failed", "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		l.push(text)
	}
}

func (l *Listener) push(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) >= queueCapacity {
		l.queue = l.queue[1:]
	}
	l.queue = append(l.queue, text)
}
