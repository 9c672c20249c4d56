package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// pdftoppmStrategy shells out to poppler's pdftoppm. Availability is a PATH
// lookup done once at construction time.
type pdftoppmStrategy struct {
	log       *logger.Logger
	binary    string
	available bool
	dpi       int
}

func NewPdftoppmStrategy(log *logger.Logger) RasterStrategy {
	bin, err := exec.LookPath("pdftoppm")
	return &pdftoppmStrategy{
		log:       log.With("service", "PdftoppmStrategy"),
		binary:    bin,
		available: err == nil,
		dpi:       200,
	}
}

func (s *pdftoppmStrategy) Name() string { return "pdftoppm" }

func (s *pdftoppmStrategy) Available() bool { return s.available }

var pageNumRe = regexp.MustCompile(`-(\d+)\.png$`)

func (s *pdftoppmStrategy) Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error) {
	tmpDir, err := os.MkdirTemp("", "raster-ppm-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-r", strconv.Itoa(s.dpi),
		"-png",
	}
	if pageCount > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(pageCount))
	}
	args = append(args, pdfPath, prefix)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, string(out))
	}

	return collectNumberedPNGs(tmpDir, "page-*.png")
}

// collectNumberedPNGs reads tool-emitted page images whose filenames end in
// the 1-based page number, e.g. page-1.png or page-007.png.
func collectNumberedPNGs(dir string, pattern string) ([]domain.RasterPage, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob output: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no page images produced in %s", dir)
	}

	pages := make([]domain.RasterPage, 0, len(matches))
	for _, m := range matches {
		sub := pageNumRe.FindStringSubmatch(filepath.Base(m))
		if sub == nil {
			continue
		}
		num, err := strconv.Atoi(sub[1])
		if err != nil || num < 1 {
			continue
		}
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m, err)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", m, err)
		}
		pages = append(pages, domain.RasterPage{
			PageNumber: num,
			PNG:        data,
			Width:      cfg.Width,
			Height:     cfg.Height,
		})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no parseable page images in %s", dir)
	}
	return pages, nil
}
