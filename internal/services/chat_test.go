package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newChatFixture(t *testing.T, ai *fakeAI) (ChatService, *SessionStore) {
	t.Helper()
	store := NewSessionStore(nopLogger(t), nil)
	return NewChatService(nopLogger(t), ai, store), store
}

func TestReply_FailureReturnsApology(t *testing.T) {
	svc, store := newChatFixture(t, &fakeAI{completeErr: errors.New("boom")})

	got := svc.Reply(context.Background(), "s1", "nguyên tử là gì?", "")
	if got != "Thầy đang bận chút, em chờ tí nhé!" {
		t.Fatalf("unexpected reply: %q", got)
	}

	// The failed turn is still recorded; the apology is not.
	store.WithSession(context.Background(), "s1", func(m *ConversationMemory) {
		if len(m.StudentQuestions) != 1 {
			t.Fatalf("expected question recorded, got %v", m.StudentQuestions)
		}
		if len(m.ConversationContext) != 1 {
			t.Fatalf("expected only the student entry, got %v", m.ConversationContext)
		}
		if m.GreetingCount != 0 {
			t.Fatalf("greeting must not be spent on failure")
		}
	})
}

func TestReply_SuccessRecordsReplyAndSpendsGreeting(t *testing.T) {
	ai := &fakeAI{completeText: "Chào em! Nguyên tử là hạt nhỏ nhất."}
	svc, store := newChatFixture(t, ai)

	got := svc.Reply(context.Background(), "s1", "nguyên tử là gì?", "Bài 5: Nguyên tử\n...")
	if got != ai.completeText {
		t.Fatalf("unexpected reply: %q", got)
	}

	store.WithSession(context.Background(), "s1", func(m *ConversationMemory) {
		if m.GreetingCount != 1 {
			t.Fatalf("expected greeting spent once, got %d", m.GreetingCount)
		}
		last := m.ConversationContext[len(m.ConversationContext)-1]
		if !strings.HasPrefix(last, "Thầy: ") {
			t.Fatalf("expected teacher entry, got %q", last)
		}
		if m.CurrentLesson != "Bài 5: Nguyên tử" {
			t.Fatalf("expected lesson picked up, got %q", m.CurrentLesson)
		}
	})

	// Second turn must not ask for another greeting.
	svc.Reply(context.Background(), "s1", "thế phân tử?", "")
	if strings.Contains(ai.lastUser, "Chào em ngắn gọn") {
		t.Fatalf("second turn prompt still requests a greeting:\n%s", ai.lastUser)
	}
}

func TestReply_PromptEmbedsPageContentAndHistory(t *testing.T) {
	ai := &fakeAI{completeText: "trả lời"}
	svc, _ := newChatFixture(t, ai)

	svc.Reply(context.Background(), "s1", "câu một", "")
	svc.Reply(context.Background(), "s1", "câu hai", "nội dung trang 3")

	if !strings.Contains(ai.lastUser, "Nội dung trang hiện tại: nội dung trang 3") {
		t.Fatalf("prompt missing page content:\n%s", ai.lastUser)
	}
	if !strings.Contains(ai.lastUser, "Học sinh: câu một") {
		t.Fatalf("prompt missing history:\n%s", ai.lastUser)
	}
	if !strings.Contains(ai.lastUser, `"câu hai"`) {
		t.Fatalf("prompt missing literal question:\n%s", ai.lastUser)
	}
	if !strings.Contains(ai.lastSystem, "giáo viên Hóa học") {
		t.Fatalf("persona missing from system prompt")
	}
	if ai.lastCfg.Temperature != 0.7 || ai.lastCfg.TopP != 0.9 || ai.lastCfg.TopK != 30 {
		t.Fatalf("unexpected sampling config: %+v", ai.lastCfg)
	}
}

func TestReply_TopKDisabledByEnv(t *testing.T) {
	t.Setenv("OPENAI_TOP_K", "0")
	ai := &fakeAI{completeText: "trả lời"}
	svc, _ := newChatFixture(t, ai)

	svc.Reply(context.Background(), "s1", "hỏi", "")
	if ai.lastCfg.TopK != 0 {
		t.Fatalf("expected top_k disabled, got %d", ai.lastCfg.TopK)
	}
}

func TestReply_EmptyCompletionFallsBackToApology(t *testing.T) {
	svc, _ := newChatFixture(t, &fakeAI{completeText: "   "})

	got := svc.Reply(context.Background(), "s1", "hỏi", "")
	if got != chatApology {
		t.Fatalf("unexpected reply: %q", got)
	}
}
