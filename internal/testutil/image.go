package testutil

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

// GenerateQRImage renders text as a QR code of size x size pixels, dark modules on white.
func GenerateQRImage(text string, size int) (image.Image, error) {
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", text, err)
	}
	return q.Image(size), nil
}

// InkImage returns a w x h grayscale image whose first ink samples (row-major)
// are black and the rest white, giving an exact ink coverage of ink/(w*h).
func InkImage(w, h, ink int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i < ink {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 255
		}
	}
	return img
}

// SolidImage returns a w x h RGBA image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// SaveImage writes img to path, choosing the encoder from the file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// WriteQRCode writes a QR code encoding text to path.
func WriteQRCode(t *testing.T, path, text string, size int) {
	t.Helper()

	img, err := GenerateQRImage(text, size)
	require.NoError(t, err)
	SaveImage(t, img, path)
}

// WriteCorruptFile writes a zero-byte file at path.
func WriteCorruptFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}
