package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ebooklab/teaching-backend/internal/domain"
	"github.com/ebooklab/teaching-backend/internal/logger"
)

// magickStrategy shells out to ImageMagick, which delegates PDF decoding to
// ghostscript. Newer installs ship a "magick" binary, older ones "convert".
type magickStrategy struct {
	log       *logger.Logger
	binary    string
	available bool
	density   int
}

func NewMagickStrategy(log *logger.Logger) RasterStrategy {
	bin, err := exec.LookPath("magick")
	if err != nil {
		bin, err = exec.LookPath("convert")
	}
	return &magickStrategy{
		log:       log.With("service", "MagickStrategy"),
		binary:    bin,
		available: err == nil,
		density:   200,
	}
}

func (s *magickStrategy) Name() string { return "imagemagick" }

func (s *magickStrategy) Available() bool { return s.available }

func (s *magickStrategy) Render(ctx context.Context, pdfPath string, pageCount int) ([]domain.RasterPage, error) {
	tmpDir, err := os.MkdirTemp("", "raster-magick-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPattern := filepath.Join(tmpDir, "page-%04d.png")
	args := []string{
		"-density", strconv.Itoa(s.density),
		pdfPath,
		outPattern,
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("imagemagick failed: %w: %s", err, string(out))
	}

	// ImageMagick numbers output frames from zero, so renumber to 1-based
	// after sorting.
	matches, err := filepath.Glob(filepath.Join(tmpDir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob output: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no page images produced in %s", tmpDir)
	}
	sort.Strings(matches)

	pages := make([]domain.RasterPage, 0, len(matches))
	for i, m := range matches {
		if pageCount > 0 && i >= pageCount {
			break
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
			PageNumber: i + 1,
			PNG:        data,
			Width:      cfg.Width,
			Height:     cfg.Height,
		})
	}
	return pages, nil
}
