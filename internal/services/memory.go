package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ebooklab/teaching-backend/internal/logger"
)

const (
	maxTopics         = 10
	maxQuestions      = 5
	maxContextEntries = 10

	lessonMarker = "Bài"
)

// chemistryKeywords are the topic anchors mined from student questions.
var chemistryKeywords = []string{
	"nguyên tử", "phân tử", "ion", "hóa trị", "phương trình",
	"phản ứng", "chất", "hỗn hợp", "nguyên tố",
}

// ConversationMemory is the bounded per-session state a chat turn conditions
// on. It is not safe for concurrent use on its own; SessionStore serializes
// access per session.
type ConversationMemory struct {
	SessionStarted      bool      `json:"session_started"`
	TopicsDiscussed     []string  `json:"topics_discussed"`
	StudentQuestions    []string  `json:"student_questions"`
	CurrentLesson       string    `json:"current_lesson"`
	GreetingCount       int       `json:"greeting_count"`
	LastGreetingTime    time.Time `json:"last_greeting_time"`
	ConversationContext []string  `json:"conversation_context"`
}

// RecordTurn folds a new student utterance into the session state: lesson
// detection from the page, question and context logs with oldest-first
// eviction, and keyword topic mining with dedup.
func (m *ConversationMemory) RecordTurn(userText string, pageContent string) {
	m.SessionStarted = true

	if pageContent != "" && strings.Contains(pageContent, lessonMarker) {
		lesson := pageContent
		if idx := strings.Index(pageContent, "\n"); idx >= 0 {
			lesson = pageContent[:idx]
		} else if r := []rune(pageContent); len(r) > 50 {
			lesson = string(r[:50])
		}
		if lesson != m.CurrentLesson {
			m.CurrentLesson = lesson
		}
	}

	m.StudentQuestions = appendBounded(m.StudentQuestions, userText, maxQuestions)
	m.ConversationContext = appendBounded(m.ConversationContext, "Học sinh: "+userText, maxContextEntries)

	lower := strings.ToLower(userText)
	for _, kw := range chemistryKeywords {
		if strings.Contains(lower, kw) && !contains(m.TopicsDiscussed, kw) {
			m.TopicsDiscussed = appendBounded(m.TopicsDiscussed, kw, maxTopics)
		}
	}
}

// ShouldGreet is true only while the session is still on its first question
// and no greeting has been spent yet.
func (m *ConversationMemory) ShouldGreet() bool {
	if m.GreetingCount >= 1 {
		return false
	}
	return len(m.StudentQuestions) <= 1
}

func (m *ConversationMemory) MarkGreetingUsed() {
	m.GreetingCount++
	m.LastGreetingTime = time.Now()
}

// AppendReply records the teacher side of the exchange in the context log.
func (m *ConversationMemory) AppendReply(reply string) {
	m.ConversationContext = appendBounded(m.ConversationContext, "Thầy: "+reply, maxContextEntries)
}

// ContextSummary renders the memory for prompt embedding: current lesson,
// last 3 topics, last 2 questions.
func (m *ConversationMemory) ContextSummary() string {
	var parts []string
	if m.CurrentLesson != "" {
		parts = append(parts, "Bài học hiện tại: "+m.CurrentLesson)
	}
	if len(m.TopicsDiscussed) > 0 {
		parts = append(parts, "Các chủ đề đã thảo luận: "+strings.Join(lastN(m.TopicsDiscussed, 3), ", "))
	}
	if len(m.StudentQuestions) > 0 {
		parts = append(parts, "Câu hỏi gần đây: "+strings.Join(lastN(m.StudentQuestions, 2), "; "))
	}
	return strings.Join(parts, "\n")
}

// RecentContext returns the last n raw context-log entries joined by newlines.
func (m *ConversationMemory) RecentContext(n int) string {
	return strings.Join(lastN(m.ConversationContext, n), "\n")
}

func appendBounded(s []string, v string, max int) []string {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// sessionEntry pairs a session's memory with its own lock so a long turn in
// one session never blocks turns in another.
type sessionEntry struct {
	mu     sync.Mutex
	loaded bool
	mem    *ConversationMemory
}

// SessionStore holds one ConversationMemory per session id. The in-memory map
// is authoritative; when a redis client is configured, each mutation is also
// persisted so sessions survive a restart. The store-wide lock only guards the
// map; fn runs under the per-session lock.
type SessionStore struct {
	log      *logger.Logger
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	rdb      *redis.Client
	ttl      time.Duration
}

func NewSessionStore(log *logger.Logger, rdb *redis.Client) *SessionStore {
	return &SessionStore{
		log:      log.With("service", "SessionStore"),
		sessions: make(map[string]*sessionEntry),
		rdb:      rdb,
		ttl:      24 * time.Hour,
	}
}

func sessionKey(id string) string { return "chat:session:" + id }

// WithSession runs fn with exclusive access to the session's memory, loading
// from redis on first touch and persisting after fn returns. Concurrent calls
// for the same session serialize; calls for different sessions do not.
func (s *SessionStore) WithSession(ctx context.Context, id string, fn func(m *ConversationMemory)) {
	if id == "" {
		id = "default"
	}

	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &sessionEntry{}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	if !e.loaded {
		e.mem = s.load(ctx, id)
		e.loaded = true
	}
	fn(e.mem)
	snapshot, err := json.Marshal(e.mem)
	e.mu.Unlock()

	if s.rdb == nil {
		return
	}
	if err != nil {
		s.log.Warn("session snapshot marshal failed", "session", id, "error", err)
		return
	}
	if err := s.rdb.Set(ctx, sessionKey(id), snapshot, s.ttl).Err(); err != nil {
		s.log.Warn("session persist failed", "session", id, "error", err)
	}
}

func (s *SessionStore) load(ctx context.Context, id string) *ConversationMemory {
	m := &ConversationMemory{}
	if s.rdb == nil {
		return m
	}
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("session load failed, starting fresh", "session", id, "error", err)
		}
		return m
	}
	if err := json.Unmarshal(raw, m); err != nil {
		s.log.Warn("session decode failed, starting fresh", "session", id, "error", err)
		return &ConversationMemory{}
	}
	return m
}

// Reset drops a session from memory and redis.
func (s *SessionStore) Reset(ctx context.Context, id string) {
	if id == "" {
		id = "default"
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
			s.log.Warn("session delete failed", "session", id, "error", err)
		}
	}
}
