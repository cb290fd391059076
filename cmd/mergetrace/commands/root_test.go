package commands

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/mergetrace/internal/logging"
)

// execute runs the command line in-process and captures both streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { logging.SetOutput(os.Stdout, os.Stderr) })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestParseLogLevelFlags(t *testing.T) {
	tests := []struct {
		name         string
		flags        []string
		env          map[string]string
		wantDefault  string
		wantPackages map[string]string
		wantErr      bool
	}{
		{
			name:         "plain default",
			flags:        []string{"debug"},
			wantDefault:  "debug",
			wantPackages: map[string]string{},
		},
		{
			name:         "per package",
			flags:        []string{"default=warn", "analyzer.cache=debug"},
			wantDefault:  "warn",
			wantPackages: map[string]string{"analyzer.cache": "debug"},
		},
		{
			name:         "env var overridden by flag",
			flags:        []string{"watcher=error"},
			env:          map[string]string{"LOG_LEVEL_WATCHER": "debug", "LOG_LEVEL_SEARCHGRAPH": "debug"},
			wantDefault:  "info",
			wantPackages: map[string]string{"watcher": "error", "searchgraph": "debug"},
		},
		{
			name:    "invalid default",
			flags:   []string{"chatty"},
			wantErr: true,
		},
		{
			name:    "invalid package level",
			flags:   []string{"analyzer=loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			def, pkgs, err := parseLogLevelFlags(tt.flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, def)
			assert.Equal(t, tt.wantPackages, pkgs)
		})
	}
}

func TestConvertEnvKeyToPackageName(t *testing.T) {
	assert.Equal(t, "analyzer.cache", convertEnvKeyToPackageName("LOG_LEVEL_ANALYZER_CACHE"))
	assert.Equal(t, "watcher", convertEnvKeyToPackageName("LOG_LEVEL_WATCHER"))
}

func TestRoot_Version(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "chatty", "config", "show")
	assert.Error(t, err)
}
