package batch

import (
	"fmt"
	"time"
)

// Cause explains why a file was not decoded.
type Cause string

const (
	// CauseLoadError means the file was missing, unreadable or not an image.
	CauseLoadError Cause = "LoadError"
	// CauseNormalizationError means the normalizer failed or panicked.
	CauseNormalizationError Cause = "NormalizationError"
	// CauseNoCodeFound means the detector ran but found no code.
	CauseNoCodeFound Cause = "NoCodeFound"
	// CauseDecodeError means the detector itself failed.
	CauseDecodeError Cause = "DecodeError"
)

// AllCauses lists causes in pipeline order.
var AllCauses = []Cause{CauseLoadError, CauseNormalizationError, CauseNoCodeFound, CauseDecodeError}

// Outcome is the result for a single matched file. Exactly one is produced per file.
type Outcome struct {
	Index   int
	Path    string
	Value   string
	Decoded bool
	Cause   Cause
	Err     error

	// Normalized is set once the image passed the normalizer; Coverage and
	// Inverted are only meaningful then.
	Normalized bool
	Coverage   float64
	Inverted   bool

	DebugPath string
	Duration  time.Duration
}

// String renders the console line for the outcome.
func (o Outcome) String() string {
	if o.Decoded {
		return fmt.Sprintf("%s: %s", o.Path, o.Value)
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: <not decoded> (%s: %v)", o.Path, o.Cause, o.Err)
	}
	return fmt.Sprintf("%s: <not decoded> (%s)", o.Path, o.Cause)
}

// ErrorString returns the error text or an empty string.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
