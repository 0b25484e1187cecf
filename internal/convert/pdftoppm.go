// Package convert turns document attachments into page images for the
// vision extractor.
package convert

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Pdftoppm renders PDFs to JPEG pages using the poppler pdftoppm CLI tool.
// TIFF scans are re-encoded as JPEG; other image attachments pass through
// unchanged.
type Pdftoppm struct {
	logger   *slog.Logger
	binPath  string
	dpi      int
	maxPages int
}

// Config holds the options for Pdftoppm.
type Config struct {
	BinPath  string // default "pdftoppm"
	DPI      int    // default 150
	MaxPages int    // 0 renders every page
}

// NewPdftoppm creates a converter.
func NewPdftoppm(config Config, logger *slog.Logger) *Pdftoppm {
	if config.BinPath == "" {
		config.BinPath = "pdftoppm"
	}
	if config.DPI <= 0 {
		config.DPI = 150
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pdftoppm{
		binPath:  config.BinPath,
		dpi:      config.DPI,
		maxPages: config.MaxPages,
		logger:   logger,
	}
}

// ToImages returns one image path per page. Any failure yields an empty list.
func (p *Pdftoppm) ToImages(ctx context.Context, documentPath string) []string {
	if documentPath == "" {
		return nil
	}
	if _, err := os.Stat(documentPath); err != nil {
		p.logger.Warn("Document not found", "path", documentPath, "error", err)
		return nil
	}

	ext := strings.ToLower(filepath.Ext(documentPath))
	if imageExtensions[ext] {
		return []string{documentPath}
	}
	if tiffExtensions[ext] {
		page, err := rasterizeTIFF(documentPath)
		if err != nil {
			p.logger.Warn("TIFF conversion failed", "path", documentPath, "error", err)
			return nil
		}
		return []string{page}
	}
	if ext != ".pdf" {
		p.logger.Warn("Unsupported document type", "path", documentPath)
		return nil
	}

	prefix := strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + "_page"
	args := []string{"-jpeg", "-r", strconv.Itoa(p.dpi)}
	if p.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.maxPages))
	}
	args = append(args, documentPath, prefix)

	cmd := exec.CommandContext(ctx, p.binPath, args...) // #nosec G204
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Warn("pdftoppm failed",
			"path", documentPath,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()))
		return nil
	}

	pages, err := filepath.Glob(globEscape(prefix) + "-*.jpg")
	if err != nil || len(pages) == 0 {
		p.logger.Warn("pdftoppm produced no pages", "path", documentPath)
		return nil
	}
	sort.Slice(pages, func(i, j int) bool {
		return pageNumber(pages[i], prefix) < pageNumber(pages[j], prefix)
	})

	p.logger.Debug("Converted document", "path", documentPath, "pages", len(pages))
	return pages
}

// pageNumber reads N out of "<prefix>-N.jpg"; pdftoppm zero-pads N.
func pageNumber(path, prefix string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(path, prefix+"-"), ".jpg"))
	if err != nil {
		return 0
	}
	return n
}

func globEscape(s string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`)
	return r.Replace(s)
}
