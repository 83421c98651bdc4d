// Package config provides configuration structures and defaults for the diagnostics converter
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Conversion ConversionConfig `mapstructure:"conversion" yaml:"conversion"` // Channel selection and renaming
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`         // Result file settings
	Welch      WelchConfig      `mapstructure:"welch" yaml:"welch"`           // Time series ASD estimation
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`       // Logging configuration
}

// ConversionConfig selects which channels of a container are aggregated
type ConversionConfig struct {
	Channels   []string `mapstructure:"channels" yaml:"channels"`       // Logical channels to keep (empty keeps all)
	ChannelMap []string `mapstructure:"channel_map" yaml:"channel_map"` // "raw=logical" entries; viper lowercases map keys
	RemapOnly  bool     `mapstructure:"remap_only" yaml:"remap_only"`   // Drop raw channels missing from channel_map
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`         // Raw or logical channels to skip
}

// OutputConfig contains result file parameters
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // Output format: "json", "parquet" or "csv"
	Path   string `mapstructure:"path" yaml:"path"`     // Output file (empty derives it from the input path)
}

// WelchConfig contains parameters for ASD estimates of time series records
type WelchConfig struct {
	NFFT    int    `mapstructure:"nfft" yaml:"nfft"`       // Segment length in samples
	Overlap int    `mapstructure:"overlap" yaml:"overlap"` // Overlapping samples, negative for half a segment
	Window  string `mapstructure:"window" yaml:"window"`   // Taper name (Uniform, Hanning, Flat-top, Bartlett, BMH, Hamming)
	Detrend bool   `mapstructure:"detrend" yaml:"detrend"` // Remove the mean before segmenting
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // Log level (debug, info, warn, error)
	File  string `mapstructure:"file" yaml:"file"`   // Optional JSON log file path
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Conversion: ConversionConfig{
			Channels:   nil,   // All channels
			ChannelMap: nil,   // Keep raw names
			RemapOnly:  false, // Unmapped channels pass through
			Exclude:    nil,   // Nothing excluded
		},
		Output: OutputConfig{
			Format: "json", // JSON document
			Path:   "",     // Next to the input file
		},
		Welch: WelchConfig{
			NFFT:    256,       // 256 sample segments
			Overlap: -1,        // 50% overlap
			Window:  "Hanning", // Hann taper
			Detrend: true,      // Remove DC before estimating
		},
		Logging: LoggingConfig{
			Level: "warn", // Only decoder and aggregation warnings
			File:  "",     // No log file
		},
	}
}

// Load overlays the configuration held by v onto the defaults
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "json", "parquet", "csv":
	default:
		return fmt.Errorf("invalid output format: %s (must be 'json', 'parquet' or 'csv')", c.Output.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn' or 'error')", c.Logging.Level)
	}
	if _, err := c.Conversion.Renames(); err != nil {
		return err
	}
	if c.Welch.NFFT < 0 {
		return fmt.Errorf("invalid welch nfft: %d", c.Welch.NFFT)
	}
	return nil
}

// Renames parses ChannelMap into a raw to logical channel map
func (c ConversionConfig) Renames() (map[string]string, error) {
	if len(c.ChannelMap) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(c.ChannelMap))
	for _, entry := range c.ChannelMap {
		raw, logical, ok := strings.Cut(entry, "=")
		raw, logical = strings.TrimSpace(raw), strings.TrimSpace(logical)
		if !ok || raw == "" || logical == "" {
			return nil, fmt.Errorf("invalid channel_map entry %q (want raw=logical)", entry)
		}
		out[raw] = logical
	}
	return out, nil
}
