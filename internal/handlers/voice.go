package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/voice"
)

type VoiceHandler struct {
	log      *logger.Logger
	listener *voice.Listener
}

// NewVoiceHandler takes listener as nil when voice input is disabled.
func NewVoiceHandler(log *logger.Logger, listener *voice.Listener) *VoiceHandler {
	return &VoiceHandler{
		log:      log.With("handler", "VoiceHandler"),
		listener: listener,
	}
}

func (h *VoiceHandler) enabled() bool {
	return h.listener != nil && h.listener.Available()
}

// GetVoiceInput is a non-blocking poll of the recognized-speech queue.
func (h *VoiceHandler) GetVoiceInput(c *gin.Context) {
	if !h.enabled() {
		RespondOK(c, gin.H{"text": "", "hasInput": false})
		return
	}
	text, ok := h.listener.Poll()
	RespondOK(c, gin.H{"text": text, "hasInput": ok})
}

func (h *VoiceHandler) StartVoiceListening(c *gin.Context) {
	if !h.enabled() {
		RespondError(c, http.StatusServiceUnavailable, "Voice input not available")
		return
	}
	if err := h.listener.Start(); err != nil {
		h.log.Error("voice listener start failed", "error", err)
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	RespondOK(c, gin.H{"status": "listening"})
}

func (h *VoiceHandler) StopVoiceListening(c *gin.Context) {
	if !h.enabled() {
		RespondError(c, http.StatusServiceUnavailable, "Voice input not available")
		return
	}
	h.listener.Stop()
	RespondOK(c, gin.H{"status": "stopped"})
}
