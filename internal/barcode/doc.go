// Package barcode defines the QR detection capability consumed by the batch
// runner and a gozxing-backed implementation of it.
//
// Callers depend on the Detector interface only, so tests can script results
// with DetectorFunc without linking a real decoder.
package barcode
