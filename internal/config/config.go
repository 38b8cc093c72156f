package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"text", "json", "csv"}
)

// DefaultConfig returns the configuration with reference defaults.
func DefaultConfig() Config {
	norm := normalize.DefaultOptions()
	det := barcode.DefaultOptions()

	return Config{
		LogLevel: "info",
		Verbose:  false,
		Input: InputConfig{
			Dir:       batch.DefaultInputDir,
			Patterns:  append([]string(nil), batch.DefaultPatterns...),
			Exclude:   []string{},
			Recursive: false,
			Sort:      true,
		},
		Output: OutputConfig{
			DebugDir:   batch.DefaultOutputDir,
			WriteDebug: true,
			Format:     "text",
		},
		Normalize: NormalizeConfig{
			Threshold:                int(norm.Threshold),
			PolarityThresholdPercent: norm.PolarityThresholdPercent,
			InkClass:                 string(norm.InkClass),
			Border:                   norm.Border,
			ResizeTarget:             norm.ResizeTarget,
			UseResized:               norm.UseResized,
		},
		Detector: DetectorConfig{
			TryHarder:    det.TryHarder,
			AlsoInverted: det.AlsoInverted,
			PureBarcode:  det.PureBarcode,
		},
		Batch: BatchConfig{Workers: 1},
		Watch: WatchConfig{DebounceMs: int(batch.DefaultDebounce / time.Millisecond)},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if len(c.Input.Patterns) == 0 {
		return errors.New("invalid input patterns: at least one extension is required")
	}
	if c.Normalize.Threshold < 0 || c.Normalize.Threshold > 255 {
		return fmt.Errorf("invalid normalize threshold: %d (must be between 0 and 255)", c.Normalize.Threshold)
	}
	if err := c.ToNormalizeOptions().Validate(); err != nil {
		return fmt.Errorf("invalid normalize settings: %w", err)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("invalid watch debounce: %d (must not be negative)", c.Watch.DebounceMs)
	}
	if c.Output.WriteDebug && c.Output.DebugDir == "" {
		return errors.New("invalid output settings: debug_dir is required when write_debug is enabled")
	}
	return nil
}

// ToNormalizeOptions converts the normalize section to normalizer options.
func (c *Config) ToNormalizeOptions() normalize.Options {
	return normalize.Options{
		Threshold:                uint8(clamp(c.Normalize.Threshold, 0, 255)), //nolint:gosec // G115: clamped above
		PolarityThresholdPercent: c.Normalize.PolarityThresholdPercent,
		InkClass:                 normalize.InkClass(c.Normalize.InkClass),
		Border:                   c.Normalize.Border,
		ResizeTarget:             c.Normalize.ResizeTarget,
		UseResized:               c.Normalize.UseResized,
	}
}

// ToDetectorOptions converts the detector section to gozxing detector options.
func (c *Config) ToDetectorOptions() barcode.Options {
	return barcode.Options{
		TryHarder:    c.Detector.TryHarder,
		AlsoInverted: c.Detector.AlsoInverted,
		PureBarcode:  c.Detector.PureBarcode,
	}
}

// ToBatchConfig converts the configuration to a batch runner configuration.
func (c *Config) ToBatchConfig() batch.Config {
	return batch.Config{
		Patterns:        append([]string(nil), c.Input.Patterns...),
		ExcludePatterns: append([]string(nil), c.Input.Exclude...),
		Recursive:       c.Input.Recursive,
		Sort:            c.Input.Sort,
		Workers:         c.Batch.Workers,
		Normalize:       c.ToNormalizeOptions(),
		OutputDir:       c.Output.DebugDir,
		WriteDebug:      c.Output.WriteDebug,
		Format:          c.Output.Format,
		OutputFile:      c.Output.File,
	}
}

// WatchDebounce returns the debounce interval as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
