package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// UploadInput carries a validated PDF already persisted to a temp path.
type UploadInput struct {
	TempPath string
	Filename string
	Title    string
	Author   string
	Subject  string
}

// BookService runs the ingestion pipeline: page count, storage upload,
// flipbook, page images, text extraction, and teaching scripts, assembling
// the final Book document. Storage upload and an unreadable PDF are the only
// fatal steps; everything downstream degrades into warnings.
type BookService interface {
	ProcessUpload(ctx context.Context, in UploadInput) (*domain.Book, []string, error)
}

type bookService struct {
	log        *logger.Logger
	bucket     BucketService
	flipbook   FlipbookService
	rasterizer RasterizerService
	extractor  TextExtractService
	scripts    TeachingScriptService

	flipbookEnabled   bool
	pageImagesEnabled bool

	// Seam for tests; production uses pdfcpu.
	countPages func(path string) (int, error)
}

func NewBookService(
	log *logger.Logger,
	bucket BucketService,
	flipbook FlipbookService,
	rasterizer RasterizerService,
	extractor TextExtractService,
	scripts TeachingScriptService,
	flipbookEnabled bool,
	pageImagesEnabled bool,
) BookService {
	return &bookService{
		log:               log.With("service", "BookService"),
		bucket:            bucket,
		flipbook:          flipbook,
		rasterizer:        rasterizer,
		extractor:         extractor,
		scripts:           scripts,
		flipbookEnabled:   flipbookEnabled,
		pageImagesEnabled: pageImagesEnabled,
		countPages:        api.PageCountFile,
	}
}

func (bs *bookService) ProcessUpload(ctx context.Context, in UploadInput) (*domain.Book, []string, error) {
	var warnings []string
	bookID := uuid.New()
	log := bs.log.With("book_id", bookID.String())

	pageCount, err := bs.countPages(in.TempPath)
	if err != nil {
		return nil, nil, fmt.Errorf("unreadable PDF: %w", err)
	}
	if pageCount < 1 {
		return nil, nil, fmt.Errorf("PDF has no pages")
	}
	log.Info("processing upload", "filename", in.Filename, "pages", pageCount)

	pdfKey := fmt.Sprintf("ebooks/%s/source.pdf", bookID)
	f, err := os.Open(in.TempPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open temp file: %w", err)
	}
	uploadErr := bs.bucket.UploadFile(ctx, pdfKey, f)
	_ = f.Close()
	if uploadErr != nil {
		return nil, nil, fmt.Errorf("storage upload failed: %w", uploadErr)
	}
	pdfURL := bs.bucket.GetPublicURL(pdfKey)

	var flipbookURL, coverURL string
	if bs.flipbookEnabled && bs.flipbook != nil {
		fb, err := bs.flipbook.Create(ctx, pdfURL, in.Title)
		if err != nil {
			log.Warn("flipbook creation failed, continuing without it", "error", err)
			warnings = append(warnings, fmt.Sprintf("flipbook unavailable: %v", err))
		} else {
			flipbookURL = fb.FlipbookURL
			coverURL = fb.ThumbnailURL
		}
	}

	var pageImages []domain.PageImage
	if bs.pageImagesEnabled && bs.rasterizer != nil {
		pageImages = bs.rasterizer.RasterizeAndUpload(ctx, in.TempPath, bookID.String(), pageCount)
		for _, pi := range pageImages {
			if pi.Err != "" {
				warnings = append(warnings, fmt.Sprintf("page %d image: %s", pi.PageNumber, pi.Err))
			}
		}
	}

	texts, err := bs.extractor.ExtractPages(in.TempPath)
	if err != nil {
		log.Warn("text extraction failed, pages will be empty", "error", err)
		warnings = append(warnings, fmt.Sprintf("text extraction failed: %v", err))
		texts = nil
	}

	pages := make([]domain.Page, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		p := domain.Page{PageNumber: i}
		if texts != nil && i <= len(texts) {
			p.Content = texts[i-1]
		}
		if pageImages != nil && i <= len(pageImages) {
			p.ImageURL = pageImages[i-1].URL
			p.ImageError = pageImages[i-1].Err
		}
		if strings.TrimSpace(p.Content) != "" {
			p.TeachingScript = bs.scripts.Generate(ctx, p.Content, i, in.Title)
		}
		pages = append(pages, p)
	}

	book := &domain.Book{
		ID:      bookID,
		Title:   in.Title,
		Author:  in.Author,
		Subject: in.Subject,
		Description: fmt.Sprintf(
			"Sách %s - %s. Được tạo tự động từ PDF với AI teaching scripts.",
			in.Subject, in.Title,
		),
		Grade:       "8",
		Chapter:     1,
		Tags:        []string{in.Subject, "AI Generated", "Interactive"},
		PDFURL:      pdfURL,
		FlipbookURL: flipbookURL,
		Pages:       pages,
		TotalPages:  pageCount,
		CreatedAt:   time.Now().UTC(),
	}
	book.CoverImageURL = coverURL
	if book.CoverImageURL == "" && len(pages) > 0 {
		book.CoverImageURL = pages[0].ImageURL
	}

	log.Info("upload processed", "pages", pageCount, "warnings", len(warnings))
	return book, warnings, nil
}
