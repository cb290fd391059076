package config

import (
	"fmt"
	"runtime"

	"github.com/moolen/mergetrace/internal/depthstats"
	"github.com/moolen/mergetrace/internal/mergelog"
)

// Config holds all configuration for the application
type Config struct {
	// Patterns recognise the reward, identifier and timing lines of a log
	Patterns mergelog.Patterns `yaml:"patterns"`

	Histogram HistogramConfig `yaml:"histogram"`

	// RewardBound is the largest reward a log may report
	RewardBound float64 `yaml:"reward_bound"`

	// EnforceRewardBound makes a reward above RewardBound fatal for the file
	EnforceRewardBound bool `yaml:"enforce_reward_bound"`

	Jumps     JumpsConfig     `yaml:"jumps"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Watch     WatchConfig     `yaml:"watch"`

	// Workers is the number of files analyzed in parallel
	Workers int `yaml:"workers"`

	// CacheSize is the number of analysis results kept in memory; 0 disables the cache
	CacheSize int `yaml:"cache_size"`

	// MetricsFile, when set, receives run metrics in Prometheus text format
	MetricsFile string `yaml:"metrics_file"`

	Tracing TracingConfig `yaml:"tracing"`
}

// HistogramConfig fixes the reward range of the per-depth histograms
type HistogramConfig struct {
	MinReward float64 `yaml:"min_reward"`
	MaxReward float64 `yaml:"max_reward"`
	Bins      int     `yaml:"bins"`

	// AutoRange replaces the fixed range by the rewards observed in each run
	AutoRange bool `yaml:"auto_range"`
}

// Options converts the histogram settings.
func (h HistogramConfig) Options() depthstats.Options {
	return depthstats.Options{Min: h.MinReward, Max: h.MaxReward, Bins: h.Bins}
}

// JumpsConfig selects the identifier events forming the trajectory
type JumpsConfig struct {
	// IncludeRevisits feeds every identifier event instead of first sightings only
	IncludeRevisits bool `yaml:"include_revisits"`
}

// DiscoveryConfig controls directory inputs
type DiscoveryConfig struct {
	// Extension selects the log files of a directory, e.g. ".log"
	Extension string `yaml:"extension"`
}

// WatchConfig controls watch mode
type WatchConfig struct {
	// DebounceMillis coalesces bursts of writes to one file into one analysis
	DebounceMillis int `yaml:"debounce_millis"`
}

// TracingConfig configures OTLP trace export
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Patterns: mergelog.DefaultPatterns(),
		Histogram: HistogramConfig{
			MinReward: 0,
			MaxReward: 1,
			Bins:      50,
		},
		RewardBound:        1,
		EnforceRewardBound: true,
		Discovery:          DiscoveryConfig{Extension: ".log"},
		Watch:              WatchConfig{DebounceMillis: 500},
		Workers:            runtime.NumCPU(),
		CacheSize:          128,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Patterns.Validate(); err != nil {
		return NewConfigError(err.Error())
	}

	if c.Histogram.Bins < 1 {
		return NewConfigError("histogram.bins must be at least 1")
	}

	if !c.Histogram.AutoRange && c.Histogram.MaxReward < c.Histogram.MinReward {
		return NewConfigError(fmt.Sprintf("histogram.max_reward (%g) must not be below histogram.min_reward (%g)",
			c.Histogram.MaxReward, c.Histogram.MinReward))
	}

	if c.EnforceRewardBound && c.RewardBound <= 0 {
		return NewConfigError("reward_bound must be positive when enforce_reward_bound is set")
	}

	if c.Discovery.Extension == "" {
		return NewConfigError("discovery.extension must not be empty")
	}

	if c.Watch.DebounceMillis < 0 {
		return NewConfigError("watch.debounce_millis must not be negative")
	}

	if c.Workers < 1 {
		return NewConfigError("workers must be at least 1")
	}

	if c.CacheSize < 0 {
		return NewConfigError("cache_size must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
