package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(outcomes []Outcome, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(outcomes)
	case "csv":
		return formatCSV(outcomes)
	case "", "text":
		return formatText(outcomes), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

type jsonOutcome struct {
	File       string  `json:"file"`
	Decoded    bool    `json:"decoded"`
	Value      string  `json:"value,omitempty"`
	Cause      Cause   `json:"cause,omitempty"`
	Error      string  `json:"error,omitempty"`
	Coverage   float64 `json:"ink_coverage_percent"`
	Inverted   bool    `json:"inverted"`
	DebugImage string  `json:"debug_image,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// formatJSON formats outcomes as JSON.
func formatJSON(outcomes []Outcome) (string, error) {
	batchResult := struct {
		Images []jsonOutcome `json:"images"`
	}{
		Images: make([]jsonOutcome, len(outcomes)),
	}

	for i, o := range outcomes {
		batchResult.Images[i] = jsonOutcome{
			File:       o.Path,
			Decoded:    o.Decoded,
			Value:      o.Value,
			Cause:      o.Cause,
			Error:      o.ErrorString(),
			Coverage:   o.Coverage,
			Inverted:   o.Inverted,
			DebugImage: o.DebugPath,
			DurationMs: float64(o.Duration.Microseconds()) / 1000,
		}
	}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

// formatCSV formats outcomes as CSV, one row per file.
func formatCSV(outcomes []Outcome) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)

	if err := writer.Write([]string{"file", "decoded", "value", "cause", "error", "ink_coverage_percent", "inverted"}); err != nil {
		return "", err
	}
	for _, o := range outcomes {
		row := []string{
			o.Path,
			strconv.FormatBool(o.Decoded),
			o.Value,
			string(o.Cause),
			o.ErrorString(),
			fmt.Sprintf("%.2f", o.Coverage),
			strconv.FormatBool(o.Inverted),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText renders one console line per outcome.
func formatText(outcomes []Outcome) string {
	var output strings.Builder
	for _, o := range outcomes {
		output.WriteString(o.String())
		output.WriteString("\n")
	}
	return output.String()
}
