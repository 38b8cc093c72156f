// Package normalize prepares photographs of printed QR codes for decoding.
//
// The pipeline is a single pass: grayscale, global threshold, ink coverage
// measurement, polarity decision, white border padding and an optional square
// resize. Every step allocates a new buffer; inputs are never modified.
package normalize

import (
	"errors"
	"fmt"
	"image"
)

const (
	// DefaultThreshold is the global binarization boundary on a 0-255 scale.
	DefaultThreshold uint8 = 128

	// DefaultPolarityThresholdPercent is the ink coverage (in percent) above
	// which the binarized buffer is kept as-is. At or below it the buffer is inverted.
	DefaultPolarityThresholdPercent = 40.0

	// DefaultBorder is the quiet-zone padding added on every side, in pixels.
	DefaultBorder = 150

	// DefaultResizeTarget is the edge length of the square resize step.
	DefaultResizeTarget = 1000
)

// InkClass selects which binarized samples count as ink.
type InkClass string

const (
	// InkDark counts zero-valued (black) samples. An all-white frame has 0% ink.
	InkDark InkClass = "dark"
	// InkNonZero counts non-zero (white) samples, the countNonZero reading.
	// A clean dark-on-light code scores above the polarity threshold and is kept.
	InkNonZero InkClass = "nonzero"
)

// ErrInvalidImage is returned for nil or empty input images.
var ErrInvalidImage = errors.New("invalid image")

// Error records the normalization step that failed.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options controls the normalization heuristic.
type Options struct {
	// Threshold is the binarization boundary; samples strictly above it become white.
	Threshold uint8

	// PolarityThresholdPercent is compared (strictly greater) against the ink coverage.
	PolarityThresholdPercent float64

	// InkClass picks the sample class measured as ink. Empty means InkDark.
	InkClass InkClass

	// Border is the white padding width per side. Zero disables padding.
	Border int

	// ResizeTarget is the square output size of the resize step. Zero skips resizing.
	ResizeTarget int

	// UseResized hands the resized buffer downstream instead of the padded one.
	// The default keeps the padded buffer and discards the resized copy.
	UseResized bool
}

// DefaultOptions returns the reference normalization settings.
func DefaultOptions() Options {
	return Options{
		Threshold:                DefaultThreshold,
		PolarityThresholdPercent: DefaultPolarityThresholdPercent,
		InkClass:                 InkDark,
		Border:                   DefaultBorder,
		ResizeTarget:             DefaultResizeTarget,
		UseResized:               false,
	}
}

// Validate checks the options for values the pipeline cannot honour.
func (o Options) Validate() error {
	if o.PolarityThresholdPercent < 0 || o.PolarityThresholdPercent > 100 {
		return fmt.Errorf("polarity threshold %.2f out of range [0, 100]", o.PolarityThresholdPercent)
	}
	switch o.InkClass {
	case "", InkDark, InkNonZero:
	default:
		return fmt.Errorf("unknown ink class %q (want %q or %q)", o.InkClass, InkDark, InkNonZero)
	}
	if o.Border < 0 {
		return fmt.Errorf("border %d must not be negative", o.Border)
	}
	if o.ResizeTarget < 0 {
		return fmt.Errorf("resize target %d must not be negative", o.ResizeTarget)
	}
	if o.UseResized && o.ResizeTarget == 0 {
		return errors.New("use_resized requires a positive resize target")
	}
	return nil
}

// OutputSize returns the dimensions Normalize produces for an input of w x h.
func (o Options) OutputSize(w, h int) (int, int) {
	if o.UseResized {
		return o.ResizeTarget, o.ResizeTarget
	}
	return w + 2*o.Border, h + 2*o.Border
}

// Result carries the normalized buffer and the measurements behind it.
type Result struct {
	// Image is the buffer to hand to the decoder.
	Image *image.Gray
	// Binarized is the thresholded buffer before any polarity change.
	Binarized *image.Gray
	// Resized is the square resize of the padded buffer, nil when skipped.
	Resized *image.Gray
	// Coverage is the ink coverage of Binarized in percent.
	Coverage float64
	// Inverted reports whether the polarity step flipped the buffer.
	Inverted bool
}

// Normalizer applies the normalization pipeline with fixed options.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer after validating opts.
func New(opts Options) (*Normalizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalize options: %w", err)
	}
	return &Normalizer{opts: opts}, nil
}

// Options returns the configured options.
func (n *Normalizer) Options() Options { return n.opts }

// Normalize converts img into a binarized, polarity-corrected, padded grayscale buffer.
func (n *Normalizer) Normalize(img image.Image) (*Result, error) {
	gray, err := Grayscale(img)
	if err != nil {
		return nil, err
	}

	bin := Binarize(gray, n.opts.Threshold)
	coverage := InkCoverage(bin, n.opts.InkClass)
	polar, inverted := ApplyPolarity(bin, coverage, n.opts.PolarityThresholdPercent)
	padded := Pad(polar, n.opts.Border)

	res := &Result{
		Image:     padded,
		Binarized: bin,
		Coverage:  coverage,
		Inverted:  inverted,
	}

	if n.opts.ResizeTarget > 0 {
		res.Resized = Resize(padded, n.opts.ResizeTarget)
		if n.opts.UseResized {
			res.Image = res.Resized
		}
	}

	return res, nil
}
