package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.png"))
	assert.True(t, IsSupportedImage("dir/b.JPG"))
	assert.True(t, IsSupportedImage("c.jpeg"))
	assert.True(t, IsSupportedImage("d.webp"))
	assert.False(t, IsSupportedImage("notes.txt"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestLoadImage_Valid(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)
	path := filepath.Join(tempDir, "white.png")
	testutil.SaveImage(t, testutil.SolidImage(40, 30, color.White), path)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, path, meta.Path)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 30, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)

	empty := filepath.Join(tempDir, "empty.png")
	testutil.WriteCorruptFile(t, empty)

	garbage := filepath.Join(tempDir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))

	tests := []struct {
		name string
		path string
		op   string
	}{
		{"empty path", "", "load"},
		{"missing file", filepath.Join(tempDir, "missing.png"), "load"},
		{"directory", tempDir, "load"},
		{"zero-byte file", empty, "decode"},
		{"garbage bytes", garbage, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, meta, err := LoadImage(tt.path)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.Equal(t, ImageMetadata{}, meta)

			var ipe *ImageProcessingError
			require.ErrorAs(t, err, &ipe)
			assert.Equal(t, tt.op, ipe.Operation)
		})
	}
}

func TestSaveDebugImage(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)
	outDir := filepath.Join(tempDir, "result")

	img := image.NewGray(image.Rect(0, 0, 8, 8))
	out, err := SaveDebugImage(outDir, "code.png", img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "code.png"), out)

	loaded, _, err := LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Bounds().Dx())
}

func TestSaveDebugImage_RelativePaths(t *testing.T) {
	outDir := filepath.Join(testutil.CreateTempDir(t), "result")
	img := image.NewGray(image.Rect(0, 0, 4, 4))

	tests := []struct {
		rel  string
		want string
	}{
		{filepath.Join("a", "x.png"), filepath.Join(outDir, "a", "x.png")},
		{filepath.Join("b", "x.png"), filepath.Join(outDir, "b", "x.png")},
		{filepath.Join("..", "escape.png"), filepath.Join(outDir, "escape.png")},
		{filepath.Join(string(filepath.Separator), "tmp", "abs.png"), filepath.Join(outDir, "abs.png")},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			out, err := SaveDebugImage(outDir, tt.rel, img)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.True(t, testutil.FileExists(out))
		})
	}
}

func TestSaveDebugImage_Failures(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)
	blocker := filepath.Join(tempDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o600))

	img := image.NewGray(image.Rect(0, 0, 4, 4))

	_, err := SaveDebugImage(blocker, "a.png", img)
	assert.Error(t, err)

	_, err = SaveDebugImage("", "a.png", img)
	assert.Error(t, err)

	_, err = SaveDebugImage(tempDir, "a.unknown", img)
	assert.Error(t, err)
}
