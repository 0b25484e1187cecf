package convert

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

// fakeBinary writes a shell script standing in for pdftoppm.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "pdftoppm")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0700)) // #nosec G306
	return path
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0600))
	return path
}

func TestPdftoppm_RendersPagesInOrder(t *testing.T) {
	// The last argument is the output prefix.
	bin := fakeBinary(t, `for a; do prefix=$a; done
for n in 01 02 10; do : > "$prefix-$n.jpg"; done
`)
	dir := t.TempDir()
	pdf := writeFile(t, dir, "invoice.pdf")

	conv := NewPdftoppm(Config{BinPath: bin}, nil)
	pages := conv.ToImages(context.Background(), pdf)

	assert.Equal(t, []string{
		filepath.Join(dir, "invoice_page-01.jpg"),
		filepath.Join(dir, "invoice_page-02.jpg"),
		filepath.Join(dir, "invoice_page-10.jpg"),
	}, pages)
}

func TestPdftoppm_PassesArguments(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := fakeBinary(t, `echo "$@" > `+argsFile+`
for a; do prefix=$a; done
: > "$prefix-1.jpg"
`)
	pdf := writeFile(t, dir, "scan.pdf")

	conv := NewPdftoppm(Config{BinPath: bin, DPI: 200, MaxPages: 3}, nil)
	require.Len(t, conv.ToImages(context.Background(), pdf), 1)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-jpeg -r 200 -l 3 "+pdf+" "+filepath.Join(dir, "scan_page")+"\n", string(args))
}

func TestPdftoppm_Failures(t *testing.T) {
	failing := fakeBinary(t, "echo 'Syntax Error' >&2\nexit 1\n")
	silent := fakeBinary(t, "exit 0\n")
	dir := t.TempDir()
	pdf := writeFile(t, dir, "broken.pdf")
	doc := writeFile(t, dir, "notes.docx")

	tests := []struct {
		name string
		bin  string
		path string
	}{
		{name: "tool exits non-zero", bin: failing, path: pdf},
		{name: "tool writes nothing", bin: silent, path: pdf},
		{name: "missing file", bin: silent, path: filepath.Join(dir, "gone.pdf")},
		{name: "empty path", bin: silent, path: ""},
		{name: "unsupported type", bin: silent, path: doc},
		{name: "missing binary", bin: filepath.Join(dir, "no-such-tool"), path: pdf},
		{name: "corrupt tiff", bin: silent, path: writeFile(t, dir, "fax.tif")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewPdftoppm(Config{BinPath: tt.bin}, nil)
			assert.Empty(t, conv.ToImages(context.Background(), tt.path))
		})
	}
}

func TestPdftoppm_ImagesPassThrough(t *testing.T) {
	dir := t.TempDir()
	conv := NewPdftoppm(Config{BinPath: filepath.Join(dir, "never-called")}, nil)

	for _, name := range []string{"scan.png", "scan.JPG", "scan.jpeg"} {
		path := writeFile(t, dir, name)
		assert.Equal(t, []string{path}, conv.ToImages(context.Background(), path), name)
	}
}

// writeTIFF writes a small grey TIFF scan and returns its path.
func writeTIFF(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.SetGray(x, 10, color.Gray{Y: 200})
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
	return path
}

func TestPdftoppm_RasterizesTIFF(t *testing.T) {
	dir := t.TempDir()
	conv := NewPdftoppm(Config{BinPath: filepath.Join(dir, "never-called")}, nil)

	for _, name := range []string{"scan.tif", "fax.TIFF"} {
		t.Run(name, func(t *testing.T) {
			path := writeTIFF(t, dir, name)

			pages := conv.ToImages(context.Background(), path)
			require.Len(t, pages, 1)
			assert.Equal(t, ".jpg", filepath.Ext(pages[0]))

			f, err := os.Open(pages[0])
			require.NoError(t, err)
			defer func() { _ = f.Close() }()

			img, err := jpeg.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
		})
	}
}
