package barcode

import (
	"context"
	"errors"
	"image"
)

// ErrNotFound reports that the detector ran but found no code.
var ErrNotFound = errors.New("barcode: no code found")

// Detector decodes a single QR code from an image.
//
// Detect returns the decoded text, or ErrNotFound (possibly wrapped) when the
// image holds no readable code. An empty string with a nil error is treated
// the same as ErrNotFound by callers.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (string, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) (string, error)

// Detect calls f(ctx, img).
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

// Options controls the gozxing detector.
type Options struct {
	// TryHarder enables the more exhaustive (slower) finder pattern search.
	TryHarder bool

	// AlsoInverted retries on the inverted image when the first pass finds nothing.
	AlsoInverted bool

	// PureBarcode hints that the image contains only an unrotated code.
	PureBarcode bool
}

// DefaultOptions returns the detector settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		TryHarder:    true,
		AlsoInverted: true,
	}
}
