package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/mergetrace/internal/depthstats"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, depthstats.Options{Min: 0, Max: 1, Bins: 50}, cfg.Histogram.Options())
	assert.Equal(t, 1.0, cfg.RewardBound)
	assert.True(t, cfg.EnforceRewardBound)
	assert.False(t, cfg.Jumps.IncludeRevisits)
	assert.Equal(t, ".log", cfg.Discovery.Extension)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "bad pattern",
			mutate:  func(c *Config) { c.Patterns.Merge = "no group" },
			wantErr: "pattern merge",
		},
		{
			name:    "zero bins",
			mutate:  func(c *Config) { c.Histogram.Bins = 0 },
			wantErr: "histogram.bins",
		},
		{
			name:    "inverted range",
			mutate:  func(c *Config) { c.Histogram.MinReward = 2 },
			wantErr: "histogram.max_reward",
		},
		{
			name: "inverted range ignored with auto range",
			mutate: func(c *Config) {
				c.Histogram.MinReward = 2
				c.Histogram.AutoRange = true
			},
		},
		{
			name:    "non-positive bound",
			mutate:  func(c *Config) { c.RewardBound = 0 },
			wantErr: "reward_bound",
		},
		{
			name: "bound not enforced",
			mutate: func(c *Config) {
				c.RewardBound = 0
				c.EnforceRewardBound = false
			},
		},
		{
			name:    "empty extension",
			mutate:  func(c *Config) { c.Discovery.Extension = "" },
			wantErr: "discovery.extension",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Watch.DebounceMillis = -1 },
			wantErr: "watch.debounce_millis",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "negative cache",
			mutate:  func(c *Config) { c.CacheSize = -3 },
			wantErr: "cache_size",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled = true },
			wantErr: "tracing.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}
