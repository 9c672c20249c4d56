package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestCleanText_StripsMarkupAndEmoji(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"**Chào** `em`!", "Chào em!"},
		{"Nguyên tử 🎉 là hạt nhỏ nhất", "Nguyên tử là hạt nhỏ nhất"},
		{"a\n\n  b\t c", "a b c"},
		{"Phản ứng: Fe + S -> FeS (nhiệt)", "Phản ứng: Fe S - FeS (nhiệt)"},
		{"# Tiêu đề", "Tiêu đề"},
	}
	for _, tc := range cases {
		if got := CleanText(tc.in); got != tc.want {
			t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSynthesize_Base64EncodesAudio(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x04}
	svc := NewTTSService(nopLogger(t), &fakeAI{audio: audio})

	got, err := svc.Synthesize(context.Background(), "Chào em", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString(audio) {
		t.Fatalf("unexpected encoding: %q", got)
	}
}

func TestSynthesize_EmptyAfterCleaningFails(t *testing.T) {
	svc := NewTTSService(nopLogger(t), &fakeAI{audio: []byte{1}})

	if _, err := svc.Synthesize(context.Background(), "🎉🎉", ""); err == nil {
		t.Fatalf("expected error for unspeakable text")
	}
}

func TestSynthesize_PropagatesProviderFailure(t *testing.T) {
	svc := NewTTSService(nopLogger(t), &fakeAI{audioErr: errors.New("down")})

	if _, err := svc.Synthesize(context.Background(), "Chào em", ""); err == nil {
		t.Fatalf("expected error")
	}
}
