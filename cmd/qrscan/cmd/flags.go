package cmd

import (
	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/spf13/cobra"
)

// addProcessingFlags registers the flags shared by batch and watch.
func addProcessingFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", batch.DefaultOutputDir, "directory for normalized debug images")
	cmd.Flags().Bool("no-debug", false, "do not write normalized debug images")
	cmd.Flags().StringSlice("include", batch.DefaultPatterns, "file extensions to process (case-sensitive, e.g. .jpg)")
	cmd.Flags().StringSlice("exclude", []string{}, "glob patterns of file names to skip")

	cmd.Flags().Int("threshold", config.DefaultConfig().Normalize.Threshold, "binarization threshold (0-255)")
	cmd.Flags().Float64("polarity-threshold", config.DefaultConfig().Normalize.PolarityThresholdPercent,
		"ink coverage percent above which the image is not inverted")
	cmd.Flags().String("ink-class", config.DefaultConfig().Normalize.InkClass,
		"samples counted as ink: dark (zero) or nonzero")
	cmd.Flags().Int("border", config.DefaultConfig().Normalize.Border, "white border width added on every side")
	cmd.Flags().Int("resize-target", config.DefaultConfig().Normalize.ResizeTarget, "square resize edge length (0 disables)")
	cmd.Flags().Bool("use-resized", false, "decode the resized image instead of the padded one")

	cmd.Flags().Bool("pure-barcode", false, "hint the decoder that images contain only an unrotated code")
	cmd.Flags().Bool("no-invert-retry", false, "do not retry decoding on the inverted image")
}

// configToBatchConfig maps centralized configuration to batch.Config.
// Changed flags override config file and environment values and are
// validated like them.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (batch.Config, error) {
	bc := cfg.ToBatchConfig()
	flags := cmd.Flags()

	if flags.Changed("output-dir") {
		bc.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("no-debug") {
		noDebug, _ := flags.GetBool("no-debug")
		bc.WriteDebug = !noDebug
	}
	if flags.Changed("include") {
		bc.Patterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	}

	if flags.Changed("threshold") {
		t, _ := flags.GetInt("threshold")
		cfg.Normalize.Threshold = t
	}
	if flags.Changed("polarity-threshold") {
		cfg.Normalize.PolarityThresholdPercent, _ = flags.GetFloat64("polarity-threshold")
	}
	if flags.Changed("ink-class") {
		cfg.Normalize.InkClass, _ = flags.GetString("ink-class")
	}
	if flags.Changed("border") {
		cfg.Normalize.Border, _ = flags.GetInt("border")
	}
	if flags.Changed("resize-target") {
		cfg.Normalize.ResizeTarget, _ = flags.GetInt("resize-target")
	}
	if flags.Changed("use-resized") {
		cfg.Normalize.UseResized, _ = flags.GetBool("use-resized")
	}
	if err := cfg.Validate(); err != nil {
		return batch.Config{}, err
	}
	bc.Normalize = cfg.ToNormalizeOptions()

	// Batch-only flags are looked up leniently so watch can share this mapping.
	if f := flags.Lookup("recursive"); f != nil && f.Changed {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	if f := flags.Lookup("sort"); f != nil && f.Changed {
		bc.Sort, _ = flags.GetBool("sort")
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if f := flags.Lookup("format"); f != nil && f.Changed {
		bc.Format, _ = flags.GetString("format")
	}
	if f := flags.Lookup("output"); f != nil && f.Changed {
		bc.OutputFile, _ = flags.GetString("output")
	}
	if f := flags.Lookup("quiet"); f != nil {
		bc.Quiet, _ = flags.GetBool("quiet")
	}

	return bc, nil
}

// detectorOptions maps configuration and flags to gozxing detector options.
func detectorOptions(cfg *config.Config, cmd *cobra.Command) barcode.Options {
	opts := cfg.ToDetectorOptions()
	if cmd.Flags().Changed("pure-barcode") {
		opts.PureBarcode, _ = cmd.Flags().GetBool("pure-barcode")
	}
	if cmd.Flags().Changed("no-invert-retry") {
		noRetry, _ := cmd.Flags().GetBool("no-invert-retry")
		opts.AlsoInverted = !noRetry
	}
	return opts
}

// inputDir resolves the directory argument, falling back to configuration.
func inputDir(cfg *config.Config, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfg.Input.Dir
}
