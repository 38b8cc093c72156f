package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/normalize"
)

// Default input and output locations.
const (
	DefaultInputDir  = "images"
	DefaultOutputDir = "result"
)

// DefaultPatterns are the extensions matched when none are configured.
var DefaultPatterns = []string{".jpg", ".png", ".jpeg"}

// Config holds all configuration for batch processing.
type Config struct {
	// File discovery settings
	Patterns        []string
	ExcludePatterns []string
	Recursive       bool
	Sort            bool

	// Processing settings
	Workers   int
	Normalize normalize.Options

	// Debug image settings
	OutputDir  string
	WriteDebug bool

	// Output settings
	Format     string
	OutputFile string
	Quiet      bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Patterns:   append([]string(nil), DefaultPatterns...),
		Sort:       true,
		Workers:    1,
		Normalize:  normalize.DefaultOptions(),
		OutputDir:  DefaultOutputDir,
		WriteDebug: true,
		Format:     "text",
	}
}

// Validate checks the configuration for values the runner cannot work with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.WriteDebug && c.OutputDir == "" {
		return errors.New("output directory is required when debug images are enabled")
	}
	switch c.Format {
	case "", "text", "json", "csv":
	default:
		return fmt.Errorf("unsupported format %q (use text, json or csv)", c.Format)
	}
	if err := c.Normalize.Validate(); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	return nil
}

// Result holds the result of batch processing.
type Result struct {
	RunID    string
	Dir      string
	Outcomes []Outcome
	Duration time.Duration
	Workers  int
}

// Stats summarizes a batch run.
type Stats struct {
	Total    int
	Decoded  int
	Failed   int
	Inverted int
	ByCause  map[Cause]int
}

// Stats counts outcomes by result and cause.
func (r *Result) Stats() Stats {
	s := Stats{ByCause: make(map[Cause]int)}
	for _, o := range r.Outcomes {
		s.Total++
		if o.Inverted {
			s.Inverted++
		}
		if o.Decoded {
			s.Decoded++
			continue
		}
		s.Failed++
		s.ByCause[o.Cause]++
	}
	return s
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Outcomes, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(w, output)
	}

	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "  Decoded: %d\n", stats.Decoded)
	_, _ = fmt.Fprintf(w, "  Not decoded: %d\n", stats.Failed)
	for _, c := range AllCauses {
		if n := stats.ByCause[c]; n > 0 {
			_, _ = fmt.Fprintf(w, "    %s: %d\n", c, n)
		}
	}
	_, _ = fmt.Fprintf(w, "  Inverted: %d\n", stats.Inverted)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if stats.Total > 0 {
		avg := r.Duration / time.Duration(stats.Total)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Microsecond))
	}
}
