package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// fitzStrategy renders pages in-process through MuPDF. It needs no external
// binaries, so it sits first in the chain.
type fitzStrategy struct {
	log *logger.Logger
	dpi float64
}

func NewFitzStrategy(log *logger.Logger) RasterStrategy {
	return &fitzStrategy{
		log: log.With("service", "FitzStrategy"),
		dpi: 300,
	}
}

func (s *fitzStrategy) Name() string { return "fitz" }

func (s *fitzStrategy) Available() bool { return true }

func (s *fitzStrategy) Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("fitz open: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if pageCount > 0 && n > pageCount {
		n = pageCount
	}

	pages := make([]domain.RasterPage, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, s.dpi)
		if err != nil {
			return nil, fmt.Errorf("fitz render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("fitz encode page %d: %w", i+1, err)
		}
		b := img.Bounds()
		pages = append(pages, domain.RasterPage{
			PageNumber: i + 1,
			PNG:        buf.Bytes(),
			Width:      b.Dx(),
			Height:     b.Dy(),
		})
	}
	return pages, nil
}
