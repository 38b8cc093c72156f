package cmd

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "qrscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"batch", "watch", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	cmd := GetRootCommand()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "QR decoder")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	cmd := GetRootCommand()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "commit:")
}

// newFlagCommand builds a throwaway command carrying the batch flags.
func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addProcessingFlags(c)
	c.Flags().Bool("recursive", false, "")
	c.Flags().Int("workers", 1, "")
	c.Flags().Bool("sort", true, "")
	c.Flags().String("format", "text", "")
	c.Flags().Bool("quiet", false, "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestConfigToBatchConfig_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()
	bc, err := configToBatchConfig(&cfg, newFlagCommand(t))
	require.NoError(t, err)

	assert.Equal(t, cfg.ToBatchConfig(), bc)
}

func TestConfigToBatchConfig_FlagsOverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 2
	cfg.Input.Recursive = true

	c := newFlagCommand(t,
		"--workers", "6",
		"--no-debug",
		"--include", ".png,.gif",
		"--border", "20",
		"--use-resized",
		"--sort=false",
		"--format", "json",
		"--quiet",
		"--ink-class", "nonzero",
	)
	bc, err := configToBatchConfig(&cfg, c)
	require.NoError(t, err)

	assert.Equal(t, 6, bc.Workers)
	assert.True(t, bc.Recursive, "unchanged flags keep config values")
	assert.False(t, bc.WriteDebug)
	assert.Equal(t, []string{".png", ".gif"}, bc.Patterns)
	assert.Equal(t, 20, bc.Normalize.Border)
	assert.True(t, bc.Normalize.UseResized)
	assert.False(t, bc.Sort)
	assert.Equal(t, "json", bc.Format)
	assert.True(t, bc.Quiet)
	assert.Equal(t, normalize.InkNonZero, bc.Normalize.InkClass)
}

func TestConfigToBatchConfig_RejectsInvalidFlagValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"threshold above range", []string{"--threshold", "300"}},
		{"negative threshold", []string{"--threshold", "-5"}},
		{"polarity above 100", []string{"--polarity-threshold", "120"}},
		{"unknown ink class", []string{"--ink-class", "bright"}},
		{"negative border", []string{"--border", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			_, err := configToBatchConfig(&cfg, newFlagCommand(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestConfigToBatchConfig_ThresholdBoundaries(t *testing.T) {
	for _, v := range []string{"0", "255"} {
		cfg := config.DefaultConfig()
		bc, err := configToBatchConfig(&cfg, newFlagCommand(t, "--threshold", v))
		require.NoError(t, err, "threshold %s", v)
		assert.Equal(t, v, strconv.Itoa(int(bc.Normalize.Threshold)))
	}
}

func TestDetectorOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := detectorOptions(&cfg, newFlagCommand(t, "--no-invert-retry", "--pure-barcode"))
	assert.False(t, opts.AlsoInverted)
	assert.True(t, opts.PureBarcode)
	assert.True(t, opts.TryHarder)
}

func TestInputDir(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "images", inputDir(&cfg, nil))
	assert.Equal(t, "scans", inputDir(&cfg, []string{"scans"}))
}
