package handlers

import (
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	chat services.ChatService
	tts  services.TTSService
}

// NewChatHandler takes tts as nil when the audio subsystem is disabled;
// text replies still work, audio fields come back null.
func NewChatHandler(log *logger.Logger, chat services.ChatService, tts services.TTSService) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "ChatHandler"),
		chat: chat,
		tts:  tts,
	}
}

func sessionID(c *gin.Context) string {
	if id := c.GetHeader("X-Session-ID"); id != "" {
		return id
	}
	return "default"
}

type chatRequest struct {
	Message     string `json:"message"`
	PageContent string `json:"page_content"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		RespondError(c, http.StatusBadRequest, "No message provided")
		return
	}

	reply := h.chat.Reply(c.Request.Context(), sessionID(c), req.Message, req.PageContent)

	var audio any
	if h.tts != nil {
		if b64, err := h.tts.Synthesize(c.Request.Context(), reply, ""); err != nil {
			h.log.Warn("reply audio generation failed", "error", err)
		} else {
			audio = b64
		}
	}

	RespondOK(c, gin.H{
		"reply": reply,
		"audio": audio,
	})
}

type generateAudioRequest struct {
	Text string `json:"text"`
}

func (h *ChatHandler) GenerateAudio(c *gin.Context) {
	if h.tts == nil {
		RespondError(c, http.StatusServiceUnavailable, "Assistant not available")
		return
	}

	var req generateAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		RespondError(c, http.StatusBadRequest, "No text provided")
		return
	}

	b64, err := h.tts.Synthesize(c.Request.Context(), req.Text, "")
	if err != nil {
		h.log.Error("audio generation failed", "error", err)
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	RespondOK(c, gin.H{"audio": b64})
}

type readTeachingScriptRequest struct {
	Script     string `json:"script"`
	PageNumber int    `json:"pageNumber"`
}

func (h *ChatHandler) ReadTeachingScript(c *gin.Context) {
	if h.tts == nil {
		RespondError(c, http.StatusServiceUnavailable, "Assistant not available")
		return
	}

	var req readTeachingScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Script == "" {
		RespondError(c, http.StatusBadRequest, "No script provided")
		return
	}
	if req.PageNumber == 0 {
		req.PageNumber = 1
	}
	scriptLen := utf8.RuneCountInString(req.Script)

	b64, err := h.tts.Synthesize(c.Request.Context(), req.Script, "")
	if err != nil {
		h.log.Warn("teaching script audio failed", "page", req.PageNumber, "error", err)
		RespondOK(c, gin.H{
			"success":      true,
			"audio":        nil,
			"pageNumber":   req.PageNumber,
			"scriptLength": scriptLen,
			"warning":      "Audio generation not available",
		})
		return
	}

	RespondOK(c, gin.H{
		"success":      true,
		"audio":        b64,
		"pageNumber":   req.PageNumber,
		"scriptLength": scriptLen,
	})
}

type readPageRequest struct {
	PageContent string `json:"pageContent"`
}

func (h *ChatHandler) ReadPage(c *gin.Context) {
	var req readPageRequest
	_ = c.ShouldBindJSON(&req)

	reply := "Không có nội dung để đọc trên trang này."
	if req.PageContent != "" {
		reply = "Tôi sẽ đọc nội dung trang này cho bạn. " + req.PageContent
	}

	var audio any
	if h.tts != nil {
		if b64, err := h.tts.Synthesize(c.Request.Context(), reply, ""); err != nil {
			h.log.Warn("page audio generation failed", "error", err)
		} else {
			audio = b64
		}
	}

	RespondOK(c, gin.H{
		"reply": reply,
		"audio": audio,
	})
}
