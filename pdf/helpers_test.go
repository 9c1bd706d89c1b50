package pdf

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// writeImage writes a w x h gradient in the format implied by the file suffix.
func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, nil)
	case ".gif":
		err = gif.Encode(f, img, nil)
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tiff":
		err = tiff.Encode(f, img, nil)
	default:
		t.Fatalf("no encoder for %s", path)
	}
	require.NoError(t, err)
}

// writePDF writes a document with one blank page per size.
func writePDF(t *testing.T, path string, sizes ...PageSize) {
	t.Helper()
	doc := gofpdf.New("P", "pt", "A4", "")
	for _, s := range sizes {
		doc.AddPageFormat("P", gofpdf.SizeType{Wd: s.Width, Ht: s.Height})
	}
	require.NoError(t, doc.OutputFileAndClose(path))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// tempPages lists leftover temporary pages in dir.
func tempPages(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "temp_*"))
	require.NoError(t, err)
	return matches
}
