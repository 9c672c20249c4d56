package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// FlipbookService asks a hosted service to turn a public PDF URL into a
// web-embeddable page-turning viewer. Failures here are always non-fatal to
// the ingestion pipeline.
type FlipbookService interface {
	Create(ctx context.Context, pdfURL string, title string) (*domain.FlipbookResult, error)
}

type flipbookService struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	clientID   string
	httpClient *http.Client
}

func NewFlipbookService(log *logger.Logger) (FlipbookService, error) {
	apiKey := os.Getenv("HEYZINE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing HEYZINE_API_KEY")
	}
	clientID := os.Getenv("HEYZINE_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("missing HEYZINE_CLIENT_ID")
	}
	baseURL := os.Getenv("HEYZINE_API_URL")
	if baseURL == "" {
		baseURL = "https://heyzine.com/api1"
	}
	return &flipbookService{
		log:        log.With("service", "FlipbookService"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type heyzineRequest struct {
	PDF        string `json:"pdf"`
	ClientID   string `json:"client_id"`
	Title      string `json:"title"`
	Download   bool   `json:"download"`
	FullScreen bool   `json:"full_screen"`
	Share      bool   `json:"share"`
	PrevNext   bool   `json:"prev_next"`
	ShowInfo   bool   `json:"show_info"`
}

type heyzineResponse struct {
	Success   *bool  `json:"success,omitempty"`
	Msg       string `json:"msg,omitempty"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	ID        string `json:"id"`
	PDF       string `json:"pdf"`
}

func (fs *flipbookService) Create(ctx context.Context, pdfURL string, title string) (*domain.FlipbookResult, error) {
	if strings.TrimSpace(pdfURL) == "" {
		return nil, fmt.Errorf("pdfURL required")
	}
	if title == "" {
		title = "Untitled Book"
	}

	// The PDF URL sometimes lags behind the storage upload; probe it but let
	// the flipbook service try regardless of the outcome.
	fs.probePDFURL(ctx, pdfURL)

	reqBody := heyzineRequest{
		PDF:        pdfURL,
		ClientID:   fs.clientID,
		Title:      title,
		Download:   false,
		FullScreen: true,
		Share:      true,
		PrevNext:   true,
		ShowInfo:   true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fs.baseURL+"/rest", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+fs.apiKey)

	resp, err := fs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("heyzine request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("heyzine read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("heyzine http %d: %s", resp.StatusCode, string(raw))
	}

	var hr heyzineResponse
	if err := json.Unmarshal(raw, &hr); err != nil {
		return nil, fmt.Errorf("heyzine decode: %w; raw=%s", err, string(raw))
	}
	if hr.Success != nil && !*hr.Success {
		return nil, fmt.Errorf("heyzine error: %s", hr.Msg)
	}
	if hr.URL == "" {
		return nil, fmt.Errorf("heyzine returned no flipbook url")
	}

	result := &domain.FlipbookResult{
		FlipbookURL:  hr.URL,
		EmbedURL:     hr.URL,
		ThumbnailURL: hr.Thumbnail,
		FlipbookID:   hr.ID,
		PDFURL:       hr.PDF,
	}
	if result.PDFURL == "" {
		result.PDFURL = pdfURL
	}
	return result, nil
}

func (fs *flipbookService) probePDFURL(ctx context.Context, pdfURL string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pdfURL, nil)
	if err != nil {
		return
	}
	resp, err := fs.httpClient.Do(req)
	if err != nil {
		fs.log.Warn("PDF URL probe failed, continuing anyway", "url", pdfURL, "error", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fs.log.Warn("PDF URL not accessible yet, continuing anyway", "url", pdfURL, "status", resp.StatusCode)
	}
}
