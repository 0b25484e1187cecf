package llm

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/Veraticus/invoice-chaser/internal/convert"
)

func TestAssistant_ExtractFromTIFFScan(t *testing.T) {
	dir := t.TempDir()
	scan := filepath.Join(dir, "scan.tiff")
	f, err := os.Create(scan)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, image.NewGray(image.Rect(0, 0, 32, 32)), nil))
	require.NoError(t, f.Close())

	conv := convert.NewPdftoppm(convert.Config{BinPath: filepath.Join(dir, "never-called")}, nil)
	pages := conv.ToImages(context.Background(), scan)
	require.Len(t, pages, 1)

	client := &fakeClient{replies: []string{`{"identifiers":["INV-42"]}`}}
	a := newTestAssistant(t, client)

	fields := a.Extract(context.Background(), "Scanned invoice", pages)
	assert.Equal(t, []string{"INV-42"}, fields.Identifiers)

	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].Images, 1)
	assert.Equal(t, "image/jpeg", client.requests[0].Images[0].MediaType)
}

func TestAssistant_SkipsUnsupportedImages(t *testing.T) {
	client := &fakeClient{replies: []string{`{"identifiers":["INV-1"]}`}}
	a := newTestAssistant(t, client)

	fields := a.Extract(context.Background(), "", []string{writePage(t, "raw.tiff", "II*")})
	assert.Empty(t, fields.Identifiers)
	assert.Empty(t, client.requests)
}
