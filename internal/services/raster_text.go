package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

const (
	textPageWidth  = 1200
	textPageHeight = 1600
	textPageMargin = 60
	textMaxLines   = 40
)

// textRenderStrategy draws each page's extracted text onto a plain canvas.
// It is the terminal fallback: it never reports an error, degrading to a
// placeholder image when even text extraction fails.
type textRenderStrategy struct {
	log       *logger.Logger
	extractor TextExtractService
	bodyFace  font.Face
	titleFace font.Face
}

func NewTextRenderStrategy(log *logger.Logger, extractor TextExtractService) RasterStrategy {
	s := &textRenderStrategy{
		log:       log.With("service", "TextRenderStrategy"),
		extractor: extractor,
	}
	if path := os.Getenv("TEXT_RENDER_FONT"); path != "" {
		if body, title, err := loadFontFaces(path); err != nil {
			s.log.Warn("could not load render font, using built-in face", "path", path, "error", err)
		} else {
			s.bodyFace = body
			s.titleFace = title
		}
	}
	return s
}

func loadFontFaces(path string) (font.Face, font.Face, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read font: %w", err)
	}
	ft, err := truetype.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse font: %w", err)
	}
	body := truetype.NewFace(ft, &truetype.Options{Size: 26})
	title := truetype.NewFace(ft, &truetype.Options{Size: 36})
	return body, title, nil
}

func (s *textRenderStrategy) Name() string { return "text-render" }

func (s *textRenderStrategy) Available() bool { return true }

func (s *textRenderStrategy) Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error) {
	texts, err := s.extractor.ExtractPages(pdfPath)
	if err != nil {
		s.log.Warn("text extraction failed, rendering placeholder pages", "error", err)
		texts = nil
	}
	if pageCount <= 0 {
		pageCount = len(texts)
	}
	if pageCount <= 0 {
		pageCount = 1
	}

	pages := make([]domain.RasterPage, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		var text string
		hasText := texts != nil && i <= len(texts)
		if hasText {
			text = texts[i-1]
		}
		data := s.renderPage(i, text, !hasText && texts == nil)
		pages = append(pages, domain.RasterPage{
			PageNumber: i,
			PNG:        data,
			Width:      textPageWidth,
			Height:     textPageHeight,
		})
	}
	return pages, nil
}

func (s *textRenderStrategy) renderPage(pageNum int, text string, failed bool) []byte {
	dc := gg.NewContext(textPageWidth, textPageHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.15, 0.15, 0.2)
	if s.titleFace != nil {
		dc.SetFontFace(s.titleFace)
	}
	dc.DrawString(fmt.Sprintf("Trang %d", pageNum), textPageMargin, textPageMargin+20)

	dc.SetRGB(0.55, 0.55, 0.6)
	dc.SetLineWidth(2)
	dc.DrawLine(textPageMargin, textPageMargin+44, textPageWidth-textPageMargin, textPageMargin+44)
	dc.Stroke()

	if s.bodyFace != nil {
		dc.SetFontFace(s.bodyFace)
	}
	dc.SetRGB(0.1, 0.1, 0.1)

	body := strings.TrimSpace(text)
	if failed {
		body = "Không thể hiển thị nội dung trang này."
	} else if body == "" {
		body = "(Trang không có nội dung văn bản)"
	}

	lines := wrapLines(dc, body, textPageWidth-2*textPageMargin, textMaxLines)
	y := float64(textPageMargin + 100)
	lineHeight := dc.FontHeight() * 1.5
	for _, ln := range lines {
		if y > textPageHeight-textPageMargin {
			break
		}
		dc.DrawString(ln, textPageMargin, y)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		// Encoding an in-memory RGBA image does not fail in practice.
		s.log.Error("placeholder encode failed", "page", pageNum, "error", err)
		return nil
	}
	return buf.Bytes()
}

// wrapLines word-wraps text to the given pixel width and caps the result,
// appending an ellipsis line when content was cut.
func wrapLines(dc *gg.Context, text string, width float64, maxLines int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			out = append(out, "")
			continue
		}
		out = append(out, dc.WordWrap(para, width)...)
		if len(out) > maxLines {
			break
		}
	}
	if len(out) > maxLines {
		out = out[:maxLines]
		out = append(out, "…")
	}
	return out
}
