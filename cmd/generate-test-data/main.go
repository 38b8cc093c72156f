package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", filepath.Join("testdata", "images"), "Output directory, relative to the project root")
		size    = flag.Int("size", 296, "Edge length of generated QR images in pixels")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate sample QR images (clean, inverted, low contrast, blank, corrupt) for qrscan.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Write samples to testdata/images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out images -size 400 # Write larger samples to images/\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}

	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	samples := testutil.DefaultSamples()
	if *verbose {
		slog.Info("Options", "out", dir, "size", *size, "samples", len(samples))
	}

	if err := testutil.WriteSampleSet(dir, samples, *size); err != nil {
		slog.Error("Failed to generate samples", "error", err)
		os.Exit(1)
	}

	for _, s := range samples {
		expected := s.Text
		if s.Cause != "" {
			expected = "<" + s.Cause + ">"
		}
		slog.Info("Generated sample", "file", filepath.Join(dir, s.Name), "variant", s.Variant, "expect", expected)
	}
	slog.Info("Test data generation complete", "dir", dir, "manifest", testutil.ManifestName)
}
