//nolint:lll
package config

// Config represents the complete configuration for qrscan.
// It is loaded from a configuration file, environment variables and
// command-line flags, in increasing order of precedence.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Input     InputConfig     `mapstructure:"input" yaml:"input" json:"input"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Normalize NormalizeConfig `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	Detector  DetectorConfig  `mapstructure:"detector" yaml:"detector" json:"detector"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch" json:"batch"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// InputConfig controls file discovery.
type InputConfig struct {
	Dir       string   `mapstructure:"dir" yaml:"dir" json:"dir"`
	Patterns  []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Sort      bool     `mapstructure:"sort" yaml:"sort" json:"sort"`
}

// OutputConfig controls debug images and result rendering.
type OutputConfig struct {
	DebugDir    string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	WriteDebug  bool   `mapstructure:"write_debug" yaml:"write_debug" json:"write_debug"`
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// NormalizeConfig mirrors normalize.Options.
type NormalizeConfig struct {
	Threshold                int     `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	PolarityThresholdPercent float64 `mapstructure:"polarity_threshold_percent" yaml:"polarity_threshold_percent" json:"polarity_threshold_percent"`
	InkClass                 string  `mapstructure:"ink_class" yaml:"ink_class" json:"ink_class"`
	Border                   int     `mapstructure:"border" yaml:"border" json:"border"`
	ResizeTarget             int     `mapstructure:"resize_target" yaml:"resize_target" json:"resize_target"`
	UseResized               bool    `mapstructure:"use_resized" yaml:"use_resized" json:"use_resized"`
}

// DetectorConfig mirrors barcode.Options.
type DetectorConfig struct {
	TryHarder    bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	AlsoInverted bool `mapstructure:"also_inverted" yaml:"also_inverted" json:"also_inverted"`
	PureBarcode  bool `mapstructure:"pure_barcode" yaml:"pure_barcode" json:"pure_barcode"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// WatchConfig contains watch mode settings.
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms" json:"debounce_ms"`
}
