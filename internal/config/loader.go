package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "qrscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and defaults.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()

	return l.read(func() error {
		if err := l.v.ReadInConfig(); err != nil {
			// A missing config file is fine; defaults and env vars still apply.
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
		return nil
	})
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	l.v.SetConfigFile(configFile)

	return l.read(func() error {
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	})
}

func (l *Loader) read(readConfig func() error) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := readConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// normalize.border -> QRSCAN_NORMALIZE_BORDER
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("input.dir", defaults.Input.Dir)
	l.v.SetDefault("input.patterns", defaults.Input.Patterns)
	l.v.SetDefault("input.exclude", defaults.Input.Exclude)
	l.v.SetDefault("input.recursive", defaults.Input.Recursive)
	l.v.SetDefault("input.sort", defaults.Input.Sort)

	l.v.SetDefault("output.debug_dir", defaults.Output.DebugDir)
	l.v.SetDefault("output.write_debug", defaults.Output.WriteDebug)
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.metrics_file", defaults.Output.MetricsFile)

	l.v.SetDefault("normalize.threshold", defaults.Normalize.Threshold)
	l.v.SetDefault("normalize.polarity_threshold_percent", defaults.Normalize.PolarityThresholdPercent)
	l.v.SetDefault("normalize.ink_class", defaults.Normalize.InkClass)
	l.v.SetDefault("normalize.border", defaults.Normalize.Border)
	l.v.SetDefault("normalize.resize_target", defaults.Normalize.ResizeTarget)
	l.v.SetDefault("normalize.use_resized", defaults.Normalize.UseResized)

	l.v.SetDefault("detector.try_harder", defaults.Detector.TryHarder)
	l.v.SetDefault("detector.also_inverted", defaults.Detector.AlsoInverted)
	l.v.SetDefault("detector.pure_barcode", defaults.Detector.PureBarcode)

	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "qrscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "qrscan"))
	}

	paths = append(paths, "/etc/qrscan")

	return paths
}
