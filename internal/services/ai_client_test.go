package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// capturedCompletion stands up a completion endpoint that records request
// bodies and returns a fixed reply.
type capturedCompletion struct {
	mu     sync.Mutex
	bodies []string
}

func (cc *capturedCompletion) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := r.Body.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		cc.mu.Lock()
		cc.bodies = append(cc.bodies, b.String())
		cc.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}
}

func (cc *capturedCompletion) last(t *testing.T) string {
	t.Helper()
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if len(cc.bodies) == 0 {
		t.Fatalf("no completion request captured")
	}
	return cc.bodies[len(cc.bodies)-1]
}

func newTestAIClient(t *testing.T, h http.HandlerFunc) AIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_MAX_RETRIES", "0")
	client, err := NewAIClient(nopLogger(t))
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	return client
}

func TestComplete_EmptySystemMessageIsOmitted(t *testing.T) {
	cc := &capturedCompletion{}
	client := newTestAIClient(t, cc.handler())

	if _, err := client.Complete(context.Background(), "", "câu hỏi", SamplingConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var req struct {
		Messages []chatMessage `json:"messages"`
	}
	if err := json.Unmarshal([]byte(cc.last(t)), &req); err != nil {
		t.Fatalf("decode captured request: %v", err)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(req.Messages), req.Messages)
	}
	if req.Messages[0].Role != "user" || req.Messages[0].Content != "câu hỏi" {
		t.Fatalf("unexpected message: %+v", req.Messages[0])
	}
}

func TestComplete_SystemMessageLeadsWhenSet(t *testing.T) {
	cc := &capturedCompletion{}
	client := newTestAIClient(t, cc.handler())

	if _, err := client.Complete(context.Background(), "persona", "câu hỏi", SamplingConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var req struct {
		Messages []chatMessage `json:"messages"`
	}
	if err := json.Unmarshal([]byte(cc.last(t)), &req); err != nil {
		t.Fatalf("decode captured request: %v", err)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestComplete_TopKOnWireOnlyWhenSet(t *testing.T) {
	cc := &capturedCompletion{}
	client := newTestAIClient(t, cc.handler())

	if _, err := client.Complete(context.Background(), "s", "u", SamplingConfig{Temperature: 0.7, TopP: 0.9, TopK: 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := cc.last(t); !strings.Contains(body, `"top_k":30`) {
		t.Fatalf("expected top_k in request, got: %s", body)
	}

	if _, err := client.Complete(context.Background(), "s", "u", SamplingConfig{Temperature: 0.7, TopP: 0.9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := cc.last(t); strings.Contains(body, "top_k") {
		t.Fatalf("top_k must stay off the wire when unset, got: %s", body)
	}
}
