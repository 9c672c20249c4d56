package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// RasterStrategy is one interchangeable PDF-to-image backend. Availability is
// probed once at startup; the chain never inspects backend-specific errors.
type RasterStrategy interface {
	Name() string
	Available() bool
	Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error)
}

// RasterizerService renders every page of a PDF through the first working
// strategy in a ranked chain, then downsizes and uploads each page image.
type RasterizerService interface {
	Rasterize(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, string)
	RasterizeAndUpload(ctx context.Context, pdfPath string, bookID string, pageCount int) []domain.PageImage
}

type rasterizerService struct {
	log        *logger.Logger
	bucket     BucketService
	strategies []RasterStrategy
	maxEdge    int
}

// NewRasterizerService takes the strategy chain in priority order. The last
// entry is expected to be the synthetic text renderer, which always succeeds.
func NewRasterizerService(log *logger.Logger, bucket BucketService, maxEdge int, strategies ...RasterStrategy) RasterizerService {
	if maxEdge <= 0 {
		maxEdge = 1600
	}
	return &rasterizerService{
		log:        log.With("service", "RasterizerService"),
		bucket:     bucket,
		strategies: strategies,
		maxEdge:    maxEdge,
	}
}

// Rasterize returns exactly pageCount entries with contiguous 1-based page
// numbers, plus the name of the backend that produced them. One backend is
// used for the whole document; a mid-document failure falls through to the
// next backend rather than mixing outputs.
func (rs *rasterizerService) Rasterize(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, string) {
	for _, st := range rs.strategies {
		if !st.Available() {
			rs.log.Debug("raster backend unavailable, skipping", "backend", st.Name())
			continue
		}
		pages, err := st.Render(ctx, pdfPath, pageCount)
		if err != nil {
			rs.log.Warn("raster backend failed, trying next", "backend", st.Name(), "error", err)
			continue
		}
		pages = normalizePageOrder(pages, pageCount)
		rs.log.Info("rasterized document", "backend", st.Name(), "pages", len(pages))
		return pages, st.Name()
	}
	// The chain is built with the text renderer at the end, so this is only
	// reachable with an explicitly empty chain.
	rs.log.Error("no raster backend available")
	return nil, ""
}

func (rs *rasterizerService) RasterizeAndUpload(ctx context.Context, pdfPath string, bookID string, pageCount int) []domain.PageImage {
	rasters, backend := rs.Rasterize(ctx, pdfPath, pageCount)
	out := make([]domain.PageImage, 0, pageCount)

	for _, rp := range rasters {
		img := domain.PageImage{PageNumber: rp.PageNumber}

		resized, err := rs.downsizePNG(rp.PNG)
		if err != nil {
			rs.log.Warn("page image downsize failed", "page", rp.PageNumber, "backend", backend, "error", err)
			img.Err = fmt.Sprintf("downsize failed: %v", err)
			out = append(out, img)
			continue
		}

		key := fmt.Sprintf("ebooks/%s/pages/page_%04d.png", bookID, rp.PageNumber)
		if err := rs.bucket.UploadFile(ctx, key, bytes.NewReader(resized)); err != nil {
			rs.log.Warn("page image upload failed", "page", rp.PageNumber, "key", key, "error", err)
			img.Err = fmt.Sprintf("upload failed: %v", err)
			out = append(out, img)
			continue
		}
		img.URL = rs.bucket.GetPublicURL(key)
		out = append(out, img)
	}
	return out
}

// downsizePNG bounds the longest edge at maxEdge with high-quality resampling.
func (rs *rasterizerService) downsizePNG(data []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= rs.maxEdge {
		return data, nil
	}

	scale := float64(rs.maxEdge) / float64(longest)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizePageOrder forces the invariant: one entry per source page,
// 1..pageCount in order, regardless of what a backend produced. Missing
// slots are filled with empty rasters (their upload will record an error
// marker); extras beyond pageCount are dropped.
func normalizePageOrder(pages []domain.RasterPage, pageCount int) []domain.RasterPage {
	if pageCount <= 0 {
		pageCount = len(pages)
	}
	byNum := make(map[int]domain.RasterPage, len(pages))
	for _, p := range pages {
		if p.PageNumber >= 1 && p.PageNumber <= pageCount {
			byNum[p.PageNumber] = p
		}
	}
	out := make([]domain.RasterPage, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		if p, ok := byNum[i]; ok {
			out = append(out, p)
		} else {
			out = append(out, domain.RasterPage{PageNumber: i})
		}
	}
	return out
}
