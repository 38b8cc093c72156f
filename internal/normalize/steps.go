package normalize

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	black uint8 = 0
	white uint8 = 255
)

// Grayscale collapses img to a single luminance channel using the
// 0.299R + 0.587G + 0.114B weighting. The result always starts at (0, 0).
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, &Error{Step: "grayscale", Err: ErrInvalidImage}
	}
	if img.Bounds().Empty() {
		return nil, &Error{Step: "grayscale", Err: errors.Join(ErrInvalidImage, errors.New("empty bounds"))}
	}
	return toGray(imaging.Grayscale(img)), nil
}

// Binarize maps every sample strictly above threshold to 255 and the rest to 0.
func Binarize(gray *image.Gray, threshold uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if src[x] > threshold {
				dst[x] = white
			} else {
				dst[x] = black
			}
		}
	}
	return out
}

// InkCoverage returns the percentage of ink samples in a binarized buffer,
// where class decides whether ink is the zero or the non-zero samples.
// Empty buffers report zero coverage.
func InkCoverage(bin *image.Gray, class InkClass) float64 {
	b := bin.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	ink := 0
	for y := 0; y < b.Dy(); y++ {
		row := bin.Pix[bin.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < b.Dx(); x++ {
			if (row[x] == black) != (class == InkNonZero) {
				ink++
			}
		}
	}
	return float64(ink) * 100 / float64(total)
}

// ApplyPolarity keeps bin when coverage is strictly above thresholdPercent and
// inverts it otherwise. It always returns a fresh buffer and whether it inverted.
func ApplyPolarity(bin *image.Gray, coverage, thresholdPercent float64) (*image.Gray, bool) {
	if coverage > thresholdPercent {
		return cloneGray(bin), false
	}
	return Invert(bin), true
}

// Invert returns 255 - v for every sample.
func Invert(gray *image.Gray) *image.Gray {
	out := cloneGray(gray)
	for i, v := range out.Pix {
		out.Pix[i] = white - v
	}
	return out
}

// Pad surrounds img with a white border of the given width on all four sides.
func Pad(img *image.Gray, border int) *image.Gray {
	if border <= 0 {
		return cloneGray(img)
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx()+2*border, b.Dy()+2*border, color.White)
	canvas = imaging.Paste(canvas, img, image.Pt(border, border))
	return toGray(canvas)
}

// Resize scales img to size x size using Catmull-Rom cubic interpolation.
func Resize(img *image.Gray, size int) *image.Gray {
	return toGray(imaging.Resize(img, size, size, imaging.CatmullRom))
}

// toGray keeps the red channel of an NRGBA image whose channels are equal.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = row[x*4]
		}
	}
	return out
}

func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}
