package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_ReadableByLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mergetrace.yaml")

	cfg := Default()
	cfg.Histogram.Bins = 10
	cfg.Jumps.IncludeRevisits = true
	cfg.MetricsFile = "/tmp/metrics.prom"
	require.NoError(t, WriteFile(path, &cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergetrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	cfg := Default()
	require.NoError(t, WriteFile(path, &cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reward_bound: 1")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	cfg := Default()
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "cfg.yaml"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create temp file")
}
