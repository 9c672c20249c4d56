package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/services"
	"github.com/ebooklab/teaching-backend/internal/utils"
)

type BookHandler struct {
	log       *logger.Logger
	books     services.BookService
	uploadDir string
}

func NewBookHandler(log *logger.Logger, books services.BookService) *BookHandler {
	hlog := log.With("handler", "BookHandler")
	return &BookHandler{
		log:       hlog,
		books:     books,
		uploadDir: utils.GetEnv("UPLOAD_DIR", os.TempDir(), hlog),
	}
}

// UploadPDF validates the multipart upload before touching disk or storage:
// a rejected file leaves no temp file behind and makes no external calls.
func (h *BookHandler) UploadPDF(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "No file provided")
		return
	}
	if fileHeader.Filename == "" {
		RespondError(c, http.StatusBadRequest, "No file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		RespondError(c, http.StatusBadRequest, "Invalid file type. Only PDF allowed")
		return
	}

	title := c.DefaultPostForm("title", "Untitled Book")
	author := c.DefaultPostForm("author", "Unknown Author")
	subject := c.DefaultPostForm("subject", "Chemistry")

	tempPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", uuid.New(), filepath.Base(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		h.log.Error("could not persist upload", "error", err)
		RespondError(c, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			h.log.Warn("temp file cleanup failed", "path", tempPath, "error", err)
		}
	}()

	book, warnings, err := h.books.ProcessUpload(c.Request.Context(), services.UploadInput{
		TempPath: tempPath,
		Filename: fileHeader.Filename,
		Title:    title,
		Author:   author,
		Subject:  subject,
	})
	if err != nil {
		h.log.Error("upload processing failed", "filename", fileHeader.Filename, "error", err)
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := gin.H{
		"book_id":      book.ID.String(),
		"title":        book.Title,
		"author":       book.Author,
		"subject":      book.Subject,
		"pdf_url":      book.PDFURL,
		"flipbook_url": book.FlipbookURL,
		"pages":        book.Pages,
		"total_pages":  book.TotalPages,
		"book":         book,
		"created_at":   book.CreatedAt,
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	RespondCreated(c, resp)
}

// ListBooks has no persistence behind it; the catalog lives in the client's
// own datastore.
func (h *BookHandler) ListBooks(c *gin.Context) {
	RespondOK(c, gin.H{"books": []any{}})
}

func (h *BookHandler) GetBook(c *gin.Context) {
	RespondError(c, http.StatusNotFound, "Book not found")
}
