package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// TeachingScriptService turns a page of textbook content into a short spoken
// lesson plan. Generate is total: any model failure degrades to a canned
// Vietnamese script rather than an error, so ingestion never stalls on it.
type TeachingScriptService interface {
	Generate(ctx context.Context, pageContent string, pageNumber int, bookTitle string) *domain.TeachingScript
}

type teachingScriptService struct {
	log *logger.Logger
	ai  AIClient
}

func NewTeachingScriptService(log *logger.Logger, ai AIClient) TeachingScriptService {
	return &teachingScriptService{
		log: log.With("service", "TeachingScriptService"),
		ai:  ai,
	}
}

const teachingScriptPromptFmt = `Bạn là giáo viên Hóa học chuyên nghiệp. Hãy tạo kịch bản giảng dạy cho trang %d của sách "%s".

Nội dung trang:
%s

Yêu cầu:
1. Tạo kịch bản giảng dạy ngắn gọn (2-3 phút)
2. Giải thích khái niệm một cách dễ hiểu
3. Đưa ra ví dụ thực tế
4. Tạo câu hỏi kiểm tra hiểu biết
5. Sử dụng ngôn ngữ phù hợp với học sinh cấp 2

Trả về JSON format:
{
    "script": "Kịch bản giảng dạy...",
    "key_concepts": ["khái niệm 1", "khái niệm 2"],
    "examples": ["ví dụ 1", "ví dụ 2"],
    "questions": ["câu hỏi 1", "câu hỏi 2"],
    "duration_minutes": 3
}`

func (ts *teachingScriptService) Generate(ctx context.Context, pageContent string, pageNumber int, bookTitle string) *domain.TeachingScript {
	prompt := fmt.Sprintf(teachingScriptPromptFmt, pageNumber, bookTitle, pageContent)

	raw, err := ts.ai.Complete(ctx, "", prompt, SamplingConfig{Temperature: 0.7})
	if err != nil {
		if IsQuotaError(err) {
			ts.log.Warn("completion quota exceeded, using fallback script", "page", pageNumber)
			return quotaFallbackScript(pageContent, pageNumber)
		}
		ts.log.Warn("teaching script generation failed, using minimal script", "page", pageNumber, "error", err)
		return genericFallbackScript(pageContent, pageNumber)
	}

	return parseTeachingScript(raw)
}

// parseTeachingScript tries progressively looser extractions of the model
// output: a fenced json block, then the outermost brace span, then the whole
// text, and finally the raw text folded into a script-only result.
func parseTeachingScript(text string) *domain.TeachingScript {
	text = strings.TrimSpace(text)

	var candidate string
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			candidate = strings.TrimSpace(rest[:end])
		}
	}
	if candidate == "" {
		if start := strings.Index(text, "{"); start >= 0 {
			if end := strings.LastIndex(text, "}"); end > start {
				candidate = text[start : end+1]
			}
		}
	}
	if candidate == "" {
		candidate = text
	}

	var script domain.TeachingScript
	if err := json.Unmarshal([]byte(candidate), &script); err == nil && script.Script != "" {
		if script.DurationMinutes <= 0 {
			script.DurationMinutes = 3
		}
		return &script
	}

	return &domain.TeachingScript{
		Script:          truncateRunes(text, 500, true),
		KeyConcepts:     []string{},
		Examples:        []string{},
		Questions:       []string{},
		DurationMinutes: 3,
	}
}

func quotaFallbackScript(pageContent string, pageNumber int) *domain.TeachingScript {
	return &domain.TeachingScript{
		Script: fmt.Sprintf(
			"Kịch bản giảng dạy tự động cho trang %d. Nội dung chính: %s. Đây là nội dung quan trọng cần học sinh nắm vững.",
			pageNumber, truncateRunes(pageContent, 300, false),
		),
		KeyConcepts:     []string{"Khái niệm chính", "Kiến thức cơ bản"},
		Examples:        []string{"Ví dụ minh họa", "Ứng dụng thực tế"},
		Questions:       []string{"Câu hỏi kiểm tra hiểu biết", "Bài tập vận dụng"},
		DurationMinutes: 3,
	}
}

func genericFallbackScript(pageContent string, pageNumber int) *domain.TeachingScript {
	return &domain.TeachingScript{
		Script:          fmt.Sprintf("Nội dung trang %d: %s...", pageNumber, truncateRunes(pageContent, 200, false)),
		KeyConcepts:     []string{},
		Examples:        []string{},
		Questions:       []string{},
		DurationMinutes: 2,
	}
}

// truncateRunes cuts at a rune boundary so multi-byte Vietnamese text is never
// split mid-character.
func truncateRunes(s string, max int, ellipsis bool) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	out := string(r[:max])
	if ellipsis {
		out += "..."
	}
	return out
}
