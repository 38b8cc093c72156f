package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// batchCmd decodes every matching image in a directory.
var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Normalize and decode every QR image in a directory",
	Long: `Process every image in a directory whose extension matches one of the
configured patterns. Each file is loaded, normalized, optionally written to the
debug directory and passed to the QR decoder. One line is reported per file:

  images/a.png: HELLO
  images/b.png: <not decoded> (LoadError: ...)

Files are processed in sorted order unless --sort=false is given, in which case
they are grouped by pattern and keep the directory listing order. With more than
one worker, results are still reported in that order.

Examples:
  qrscan batch
  qrscan batch scans/ --include .png --recursive
  qrscan batch scans/ --workers 8 --format csv --output results.csv
  qrscan batch scans/ --metrics-file /var/lib/node_exporter/qrscan.prom`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addProcessingFlags(batchCmd)
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().Bool("sort", true, "process files in lexicographic path order")
	batchCmd.Flags().IntP("workers", "w", 1, "number of files processed in parallel")
	batchCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	batchCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	batchCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress informational output")
	batchCmd.Flags().Bool("stats", false, "print processing statistics after the results")
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}
	dir := inputDir(cfg, args)

	metricsFile := cfg.Output.MetricsFile
	if cmd.Flags().Changed("metrics-file") {
		metricsFile, _ = cmd.Flags().GetString("metrics-file")
	}

	reg := prometheus.NewRegistry()
	runner, err := batch.NewRunner(bc, barcode.NewGozxingDetector(detectorOptions(cfg, cmd)),
		batch.WithMetrics(metrics.New(reg)),
		batch.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	// Text results to stdout are streamed as they arrive; everything else is rendered at the end.
	streaming := (bc.Format == "" || bc.Format == "text") && bc.OutputFile == ""
	var emit func(batch.Outcome)
	if streaming {
		emit = func(o batch.Outcome) { _, _ = fmt.Fprintln(out, o.String()) }
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runner.Run(ctx, dir, nil, emit)
	if result == nil {
		return fmt.Errorf("batch processing failed: %w", runErr)
	}

	if !streaming {
		if err := result.SaveResults(out, bc.Format, bc.OutputFile, bc.Quiet); err != nil {
			return err
		}
	}

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		result.PrintStats(out, bc.Quiet)
	}

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile, reg); err != nil {
			return err
		}
		slog.Debug("metrics written", "file", metricsFile, "run_id", result.RunID)
	}

	if runErr != nil {
		return fmt.Errorf("batch interrupted: %w", runErr)
	}
	return nil
}
