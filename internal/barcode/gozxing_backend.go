package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// GozxingDetector decodes QR codes with the pure Go gozxing reader.
type GozxingDetector struct {
	opts Options
}

// NewGozxingDetector returns a detector using opts.
func NewGozxingDetector(opts Options) *GozxingDetector {
	return &GozxingDetector{opts: opts}
}

// Detect implements Detector.
func (d *GozxingDetector) Detect(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil || img.Bounds().Empty() {
		return "", errors.New("barcode: empty image")
	}

	hints := d.hints()
	candidates := []image.Image{img}
	if d.opts.AlsoInverted {
		candidates = append(candidates, imaging.Invert(img))
	}

	var notFound, failure error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := decodeQR(candidate, hints)
		switch {
		case err == nil && text != "":
			return text, nil
		case err == nil:
		case isReaderException(err):
			notFound = err
		default:
			failure = err
		}
	}

	if failure != nil {
		return "", failure
	}
	if notFound != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, notFound)
	}
	return "", ErrNotFound
}

func (d *GozxingDetector) hints() map[gozxing.DecodeHintType]interface{} {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
	}
	if d.opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if d.opts.PureBarcode {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}
	return hints
}

// decodeQR runs a single gozxing pass, converting decoder panics on malformed
// input into errors.
func decodeQR(img image.Image, hints map[gozxing.DecodeHintType]interface{}) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("barcode: decoder panic: %v", r)
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("barcode: creating bitmap: %w", err)
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}

// isReaderException reports whether err is one of gozxing's "could not read"
// conditions (not found, checksum, format) rather than an operational failure.
func isReaderException(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}
