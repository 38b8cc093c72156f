package testutil

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// ManifestName is the file describing a generated sample set.
const ManifestName = "manifest.json"

// Sample describes one generated input image and the outcome it should produce.
type Sample struct {
	Name    string `json:"name"`
	Text    string `json:"text,omitempty"`
	Variant string `json:"variant"`
	// Cause is the expected failure cause, empty when the sample should decode.
	Cause string `json:"cause,omitempty"`
}

// DefaultSamples covers the lighting and polarity conditions the normalizer targets.
func DefaultSamples() []Sample {
	return []Sample{
		{Name: "clean.png", Text: "HELLO", Variant: "clean"},
		{Name: "inverted.png", Text: "INVERTED", Variant: "inverted"},
		{Name: "low-contrast.png", Text: "LOW CONTRAST", Variant: "low-contrast"},
		{Name: "underexposed.jpg", Text: "UNDEREXPOSED", Variant: "underexposed"},
		{Name: "blank.png", Variant: "blank", Cause: "NoCodeFound"},
		{Name: "corrupt.png", Variant: "corrupt", Cause: "LoadError"},
	}
}

// WriteSampleSet renders samples into dir and writes a manifest next to them.
func WriteSampleSet(dir string, samples []Sample, size int) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}

	for _, s := range samples {
		path := filepath.Join(dir, s.Name)
		if s.Variant == "corrupt" {
			if err := os.WriteFile(path, nil, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			continue
		}

		img, err := renderSample(s, size)
		if err != nil {
			return err
		}
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestName), data, 0o600)
}

// LoadManifest reads the sample manifest from dir.
func LoadManifest(dir string) ([]Sample, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName)) //nolint:gosec // G304: manifest path built from caller dir
	if err != nil {
		return nil, err
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return samples, nil
}

func renderSample(s Sample, size int) (image.Image, error) {
	if s.Variant == "blank" {
		return SolidImage(size, size, color.White), nil
	}

	img, err := GenerateQRImage(s.Text, size)
	if err != nil {
		return nil, err
	}

	switch s.Variant {
	case "clean":
		return img, nil
	case "inverted":
		return imaging.Invert(img), nil
	case "low-contrast":
		return imaging.AdjustContrast(img, -60), nil
	case "underexposed":
		return imaging.AdjustBrightness(img, -30), nil
	default:
		return nil, fmt.Errorf("unknown sample variant %q", s.Variant)
	}
}
