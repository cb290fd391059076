package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/mergetrace/internal/logging"
)

const Version = "0.1.0"

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	logLevels   []string // Supports multiple --log-level flags
	configPath  string
	workers     int
	extension   string
	metricsFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mergetrace",
		Short: "mergetrace - search trajectory analysis for merge-and-shrink logs",
		Long: `mergetrace rebuilds the graph of merge decisions recorded in a search log,
propagates simulation rewards through it and writes per-depth statistics:
reward histograms, visitation counts, timing averages and trajectory jumps.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries results; logs go to stderr
			logging.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
			return setupLog(opts.logLevels)
		},
	}

	// Supports per-package log levels: --log-level debug --log-level searchgraph=debug
	cmd.PersistentFlags().StringSliceVar(&opts.logLevels, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level analyzer.cache=debug --log-level watcher=warn")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().IntVarP(&opts.workers, "workers", "j", 0, "Files analyzed in parallel (default: config, else number of CPUs)")
	cmd.PersistentFlags().StringVar(&opts.extension, "extension", "", "Extension of log files searched in directories (default: config, else .log)")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newJumpsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// Execute runs the command line and reports a failure on stderr.
func Execute() error {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// setupLog initializes the logging system with parsed log level flags.
// Priority: CLI flags > environment variables > default
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags parses CLI flags and environment variables.
//
// CLI format: ["debug"], ["default=info", "searchgraph=debug"], or ["info"]
// Env vars: LOG_LEVEL_ANALYZER_CACHE=debug (package name uppercased, dots to underscores)
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		if !strings.HasPrefix(envPair, "LOG_LEVEL_") {
			continue
		}
		parts := strings.SplitN(envPair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		result[convertEnvKeyToPackageName(parts[0])] = parts[1]
	}

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			result["default"] = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		result[parts[0]] = parts[1]
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := logging.ValidateLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := logging.ValidateLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_ANALYZER_CACHE -> analyzer.cache
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}
