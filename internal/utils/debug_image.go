package utils

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// SaveDebugImage writes img into dir at relPath, creating subdirectories as
// needed. Paths that would leave dir are reduced to their base name. The
// encoder follows the extension, so a .jpg input produces a JPEG copy.
func SaveDebugImage(dir, relPath string, img image.Image) (string, error) {
	if dir == "" {
		return "", &ImageProcessingError{Operation: "save", Err: errors.New("empty output directory")}
	}

	rel := filepath.Clean(relPath)
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(rel)
	}
	outPath := filepath.Join(dir, rel)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return "", &ImageProcessingError{Operation: "save", Path: dir, Err: err}
	}
	if err := imaging.Save(img, outPath); err != nil {
		return "", &ImageProcessingError{Operation: "save", Path: outPath, Err: err}
	}
	return outPath, nil
}
