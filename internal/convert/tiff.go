package convert

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

var tiffExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// jpegQuality keeps small print legible for the extractor.
const jpegQuality = 90

// rasterizeTIFF writes the first image of a TIFF scan to "<base>_page-1.jpg".
// Vision models do not accept TIFF input.
func rasterizeTIFF(path string) (string, error) {
	in, err := os.Open(path) // #nosec G304 -- path is a downloaded attachment
	if err != nil {
		return "", fmt.Errorf("failed to open tiff: %w", err)
	}
	defer func() { _ = in.Close() }()

	img, err := tiff.Decode(in)
	if err != nil {
		return "", fmt.Errorf("failed to decode tiff: %w", err)
	}

	page := strings.TrimSuffix(path, filepath.Ext(path)) + "_page-1.jpg"
	out, err := os.Create(page) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("failed to create page image: %w", err)
	}

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = out.Close()
		_ = os.Remove(page)
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(page)
		return "", fmt.Errorf("failed to write page image: %w", err)
	}
	return page, nil
}
