package domain

import (
	"time"

	"github.com/google/uuid"
)

// TeachingScript is the structured per-page instructional content produced by
// the completion model. Always present for pages with non-empty text; on any
// generation failure it degrades to a deterministic templated value instead.
type TeachingScript struct {
	Script          string   `json:"script"`
	KeyConcepts     []string `json:"key_concepts"`
	Examples        []string `json:"examples"`
	Questions       []string `json:"questions"`
	DurationMinutes int      `json:"duration_minutes"`
}

// Page numbers are 1-based and contiguous with the source PDF; a page that
// failed rasterization keeps its slot with an empty ImageURL and an error
// marker rather than being dropped.
type Page struct {
	PageNumber     int             `json:"page_number"`
	Content        string          `json:"content"`
	ImageURL       string          `json:"image_url,omitempty"`
	ImageError     string          `json:"image_error,omitempty"`
	TeachingScript *TeachingScript `json:"teaching_script,omitempty"`
}

// Book is the assembled document returned from an ingestion run. It is never
// mutated after assembly; persisting it is the caller's job.
type Book struct {
	ID            uuid.UUID `json:"book_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Subject       string    `json:"subject"`
	Description   string    `json:"description"`
	Grade         string    `json:"grade"`
	Chapter       int       `json:"chapter"`
	Tags          []string  `json:"tags"`
	PDFURL        string    `json:"pdf_url"`
	FlipbookURL   string    `json:"flipbook_url"`
	CoverImageURL string    `json:"cover_image_url"`
	Pages         []Page    `json:"pages"`
	TotalPages    int       `json:"total_pages"`
	CreatedAt     time.Time `json:"created_at"`
}

// FlipbookResult is what the hosted flipbook service gives back. All fields
// empty is a valid outcome: the pipeline continues without a flipbook.
type FlipbookResult struct {
	FlipbookURL  string `json:"flipbook_url"`
	EmbedURL     string `json:"embed_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	FlipbookID   string `json:"flipbook_id"`
	PDFURL       string `json:"pdf_url"`
}

// RasterPage is one rendered PDF page before downsizing and upload.
type RasterPage struct {
	PageNumber int
	PNG        []byte
	Width      int
	Height     int
}

// PageImage is the outcome of downsizing and uploading one raster page.
// Err carries the per-page failure marker; it never aborts the document.
type PageImage struct {
	PageNumber int
	URL        string
	Err        string
}
