package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFlipbookFixture(t *testing.T, handler http.HandlerFunc) FlipbookService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("HEYZINE_API_KEY", "test-key")
	t.Setenv("HEYZINE_CLIENT_ID", "test-client")
	t.Setenv("HEYZINE_API_URL", srv.URL)

	svc, err := NewFlipbookService(nopLogger(t))
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	return svc
}

func TestFlipbookCreate_Success(t *testing.T) {
	var gotReq heyzineRequest
	svc := newFlipbookFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/rest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":       "https://heyzine.com/flip-book/abc.html",
			"thumbnail": "https://heyzine.com/thumb/abc.jpg",
			"id":        "abc",
		})
	})

	res, err := svc.Create(context.Background(), "https://cdn.example.com/book.pdf", "Hóa học 8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FlipbookURL != "https://heyzine.com/flip-book/abc.html" {
		t.Fatalf("unexpected url: %q", res.FlipbookURL)
	}
	if res.FlipbookID != "abc" {
		t.Fatalf("unexpected id: %q", res.FlipbookID)
	}
	if res.PDFURL != "https://cdn.example.com/book.pdf" {
		t.Fatalf("expected source pdf url preserved, got %q", res.PDFURL)
	}
	if gotReq.ClientID != "test-client" || !gotReq.FullScreen || gotReq.Download {
		t.Fatalf("unexpected request options: %+v", gotReq)
	}
}

func TestFlipbookCreate_SuccessFalseIsError(t *testing.T) {
	svc := newFlipbookFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		success := false
		_ = json.NewEncoder(w).Encode(heyzineResponse{Success: &success, Msg: "invalid pdf"})
	})

	if _, err := svc.Create(context.Background(), "https://cdn.example.com/book.pdf", "t"); err == nil {
		t.Fatalf("expected error on success=false")
	}
}

func TestFlipbookCreate_HTTPErrorIsError(t *testing.T) {
	svc := newFlipbookFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "nope", http.StatusBadGateway)
	})

	if _, err := svc.Create(context.Background(), "https://cdn.example.com/book.pdf", "t"); err == nil {
		t.Fatalf("expected error on http 502")
	}
}

func TestFlipbookCreate_EmptyURLRejected(t *testing.T) {
	svc := newFlipbookFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := svc.Create(context.Background(), "  ", "t"); err == nil {
		t.Fatalf("expected error for empty pdf url")
	}
}
