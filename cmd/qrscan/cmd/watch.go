package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Decode QR images as they appear in a directory",
	Long: `Watch a directory and decode every matching image that is created or
rewritten there, once the file has stopped changing for the debounce interval.
Runs until interrupted.

Examples:
  qrscan watch inbox/
  qrscan watch inbox/ --process-existing --debounce 1s`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runWatchCommand,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addProcessingFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", batch.DefaultDebounce, "quiet period before a new file is processed")
	watchCmd.Flags().Bool("process-existing", false, "decode files already in the directory before watching")
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}
	dir := inputDir(cfg, args)

	debounce := cfg.WatchDebounce()
	if cmd.Flags().Changed("debounce") {
		debounce, _ = cmd.Flags().GetDuration("debounce")
	}

	runner, err := batch.NewRunner(bc, barcode.NewGozxingDetector(detectorOptions(cfg, cmd)),
		batch.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	emit := func(o batch.Outcome) { _, _ = fmt.Fprintln(out, o.String()) }

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	existing, _ := cmd.Flags().GetBool("process-existing")
	return runner.Watch(ctx, dir, nil, batch.WatchOptions{Debounce: debounce, ProcessExisting: existing}, emit)
}
