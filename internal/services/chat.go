package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/utils"
)

// The tutor's voice when the model is unreachable.
const chatApology = "Thầy đang bận chút, em chờ tí nhé!"

// ChatService answers student questions in a teacher persona, conditioned on
// the current page and the session's conversation memory. Reply is total: any
// model failure surfaces as a short apology, never an error.
type ChatService interface {
	Reply(ctx context.Context, sessionID string, userText string, pageContent string) string
}

type chatService struct {
	log      *logger.Logger
	ai       AIClient
	sessions *SessionStore
	topK     int
}

func NewChatService(log *logger.Logger, ai AIClient, sessions *SessionStore) ChatService {
	clog := log.With("service", "ChatService")
	return &chatService{
		log:      clog,
		ai:       ai,
		sessions: sessions,
		// Zero keeps top_k off the wire for backends that reject it.
		topK: utils.GetEnvAsInt("OPENAI_TOP_K", 30, clog),
	}
}

const chatPersona = `Bạn là giáo viên Hóa học thông minh, tự nhiên, dạy học sinh cấp 2.

NGUYÊN TẮC QUAN TRỌNG:
- Trả lời ngắn gọn, súc tích (tối đa 70 từ)
- Đưa ra ví dụ thực tế cụ thể để học sinh dễ hiểu
- TUYỆT ĐỐI KHÔNG hỏi lại học sinh ("Các em có hiểu không?", "Còn câu hỏi nào không?")
- TUYỆT ĐỐI KHÔNG chào hỏi nếu đã chào rồi
- Trả lời tự nhiên, thông minh như giáo viên thật
- Tập trung vào giải thích kiến thức với ví dụ cụ thể
- Sử dụng ngôn ngữ đơn giản, gần gũi`

func (cs *chatService) Reply(ctx context.Context, sessionID string, userText string, pageContent string) string {
	reply := chatApology

	cs.sessions.WithSession(ctx, sessionID, func(m *ConversationMemory) {
		m.RecordTurn(userText, pageContent)
		greetingNeeded := m.ShouldGreet()

		prompt := buildChatPrompt(m, userText, pageContent, greetingNeeded)

		text, err := cs.ai.Complete(ctx, chatPersona, prompt, SamplingConfig{
			Temperature: 0.7,
			TopP:        0.9,
			TopK:        cs.topK,
		})
		if err != nil {
			cs.log.Warn("chat completion failed, using apology", "session", sessionID, "error", err)
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			cs.log.Warn("chat completion returned empty reply", "session", sessionID)
			return
		}

		if greetingNeeded {
			m.MarkGreetingUsed()
		}
		m.AppendReply(text)
		reply = text
	})

	return reply
}

func buildChatPrompt(m *ConversationMemory, userText string, pageContent string, greetingNeeded bool) string {
	var contextParts []string
	if pageContent != "" {
		contextParts = append(contextParts, "Nội dung trang hiện tại: "+pageContent)
	}
	if summary := m.ContextSummary(); summary != "" {
		contextParts = append(contextParts, "Bối cảnh cuộc trò chuyện: "+summary)
	}

	var b strings.Builder
	if recent := m.RecentContext(3); recent != "" {
		b.WriteString("BỐI CẢNH CUỘC TRÒ CHUYỆN GẦN ĐÂY:\n")
		b.WriteString(recent)
		b.WriteString("\n\n")
	}
	if len(contextParts) > 0 {
		b.WriteString("NỘI DUNG BÀI HỌC:\n")
		b.WriteString(strings.Join(contextParts, "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Câu hỏi của học sinh: %q\n\n", userText)
	if greetingNeeded {
		b.WriteString("Chào em ngắn gọn (1 câu) rồi ")
	}
	b.WriteString("Trả lời trực tiếp với ví dụ thực tế cụ thể. KHÔNG hỏi lại.")
	return b.String()
}
