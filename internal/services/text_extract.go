package services

import (
	"fmt"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/ebooklab/teaching-backend/internal/logger"
)

// TextExtractService pulls raw text out of a PDF one page at a time. A page
// that cannot be read yields an empty string in its slot; the slice always
// has one entry per source page, in order.
type TextExtractService interface {
	ExtractPages(pdfPath string) ([]string, error)
}

type textExtractService struct {
	log *logger.Logger
}

func NewTextExtractService(log *logger.Logger) TextExtractService {
	return &textExtractService{log: log.With("service", "TextExtractService")}
}

func (ts *textExtractService) ExtractPages(pdfPath string) ([]string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]string, 0, numPages)

	for i := 1; i <= numPages; i++ {
		text, err := ts.extractPage(r, i)
		if err != nil {
			ts.log.Warn("page text extraction failed, leaving page empty", "page", i, "error", err)
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// extractPage isolates the per-page parse so a panic inside the pdf library
// (malformed content streams do that) degrades to an empty page instead of
// taking down the request.
func (ts *textExtractService) extractPage(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("pdf page %d panicked: %v", pageNum, rec)
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	plain, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	return collapseWhitespace(plain), nil
}

var wsRe = regexp.MustCompile(`[ \t]+`)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = wsRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		out = append(out, strings.TrimSpace(ln))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
