package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/ebooklab/teaching-backend/internal/domain"
)

type fakeStrategy struct {
	name      string
	available bool
	pages     []domain.RasterPage
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string    { return f.name }
func (f *fakeStrategy) Available() bool { return f.available }
func (f *fakeStrategy) Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error) {
	f.calls++
	return f.pages, f.err
}

type fakeBucket struct {
	uploads []string
	failKey string
}

func (f *fakeBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	if f.failKey != "" && strings.Contains(key, f.failKey) {
		return errors.New("upload refused")
	}
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeBucket) DeleteFile(ctx context.Context, key string) error { return nil }

func (f *fakeBucket) GetPublicURL(key string) string {
	return "https://storage.example.com/" + key
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func testPages(t *testing.T, n int) []domain.RasterPage {
	t.Helper()
	pages := make([]domain.RasterPage, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, domain.RasterPage{PageNumber: i, PNG: testPNG(t, 10, 14), Width: 10, Height: 14})
	}
	return pages
}

func TestRasterize_FirstAvailableStrategyWins(t *testing.T) {
	skipped := &fakeStrategy{name: "off", available: false}
	winner := &fakeStrategy{name: "on", available: true, pages: testPages(t, 2)}
	spare := &fakeStrategy{name: "spare", available: true, pages: testPages(t, 2)}

	rs := NewRasterizerService(nopLogger(t), &fakeBucket{}, 1600, skipped, winner, spare)
	pages, backend := rs.Rasterize(context.Background(), "x.pdf", 2)

	if backend != "on" {
		t.Fatalf("unexpected backend: %q", backend)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if skipped.calls != 0 || spare.calls != 0 {
		t.Fatalf("unexpected strategy calls: skipped=%d spare=%d", skipped.calls, spare.calls)
	}
}

func TestRasterize_FailureFallsThroughWholeDocument(t *testing.T) {
	failing := &fakeStrategy{name: "flaky", available: true, err: errors.New("mid-document crash")}
	backup := &fakeStrategy{name: "backup", available: true, pages: testPages(t, 3)}

	rs := NewRasterizerService(nopLogger(t), &fakeBucket{}, 1600, failing, backup)
	pages, backend := rs.Rasterize(context.Background(), "x.pdf", 3)

	if backend != "backup" {
		t.Fatalf("expected fallback backend, got %q", backend)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if failing.calls != 1 {
		t.Fatalf("expected failing strategy tried once")
	}
}

func TestRasterize_NormalizesToContiguousPages(t *testing.T) {
	// Backend returns pages out of order, with a gap and an extra.
	messy := &fakeStrategy{name: "messy", available: true, pages: []domain.RasterPage{
		{PageNumber: 3, PNG: testPNG(t, 4, 4)},
		{PageNumber: 1, PNG: testPNG(t, 4, 4)},
		{PageNumber: 9, PNG: testPNG(t, 4, 4)},
	}}

	rs := NewRasterizerService(nopLogger(t), &fakeBucket{}, 1600, messy)
	pages, _ := rs.Rasterize(context.Background(), "x.pdf", 4)

	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.PageNumber != i+1 {
			t.Fatalf("page %d has number %d", i, p.PageNumber)
		}
	}
	if pages[1].PNG != nil {
		t.Fatalf("missing page 2 should be an empty slot")
	}
}

func TestRasterizeAndUpload_PerPageFailureIsNonFatal(t *testing.T) {
	st := &fakeStrategy{name: "ok", available: true, pages: testPages(t, 3)}
	bucket := &fakeBucket{failKey: "page_0002"}

	rs := NewRasterizerService(nopLogger(t), bucket, 1600, st)
	images := rs.RasterizeAndUpload(context.Background(), "x.pdf", "book-1", 3)

	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	if images[0].URL == "" || images[2].URL == "" {
		t.Fatalf("expected pages 1 and 3 uploaded: %+v", images)
	}
	if images[1].URL != "" || images[1].Err == "" {
		t.Fatalf("expected page 2 marked failed: %+v", images[1])
	}
	wantKey := fmt.Sprintf("ebooks/%s/pages/page_%04d.png", "book-1", 1)
	if !strings.HasSuffix(images[0].URL, wantKey) {
		t.Fatalf("unexpected key layout: %q", images[0].URL)
	}
}

func TestDownsizePNG_BoundsLongestEdge(t *testing.T) {
	rs := &rasterizerService{log: nopLogger(t), maxEdge: 100}

	big := testPNG(t, 400, 200)
	out, err := rs.downsizePNG(big)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}

	small := testPNG(t, 50, 60)
	out, err = rs.downsizePNG(small)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, small) {
		t.Fatalf("small image should pass through untouched")
	}
}
