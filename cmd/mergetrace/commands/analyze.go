package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moolen/mergetrace/internal/analyzer"
	"github.com/moolen/mergetrace/internal/discovery"
	"github.com/moolen/mergetrace/internal/report"
)

type analyzeOptions struct {
	analysisFlags
	outputDir string
	format    string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze PATH...",
		Short: "Analyze search logs and write per-depth statistics",
		Long: `Analyze one or more search logs. A directory is searched recursively for
files with the configured extension.

With --output, every log gets hist_at_<depth>.dat, children_at_<depth>.child
and avg_stats_per_depth.out. A single log writes straight into the output
directory; several logs each get a sub-directory mirroring their location
below the input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Directory receiving the data files")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Summary format: text, json or yaml")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, args []string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root, &opts.analysisFlags)
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	inputs, err := discover(args, cfg.Discovery.Extension)
	if err != nil {
		return err
	}

	outcomes, err := s.analyzer.AnalyzeAll(cmd.Context(), paths(inputs))
	if err != nil {
		return err
	}

	if opts.outputDir != "" {
		if err := writeOutputs(opts.outputDir, inputs, outcomes, format, len(inputs) == 1); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case format == report.FormatText:
		report.RenderTable(out, outcomes, terminalWidth(out))
	case opts.outputDir == "":
		if err := report.WriteSummary(out, format, report.Summaries(outcomes)); err != nil {
			return err
		}
	}

	if err := s.flushMetrics(); err != nil {
		return err
	}
	return failures(outcomes)
}

// writeOutputs writes the data files of every successful outcome and, for
// json or yaml, the summary document. With single set the data files go
// straight into dir instead of a mirrored sub-directory.
func writeOutputs(dir string, inputs []input, outcomes []analyzer.Outcome, format report.Format, single bool) error {
	for i, o := range outcomes {
		if o.Err != nil {
			continue
		}
		target, err := discovery.OutputDir(dir, inputs[i].root, o.Path, single)
		if err != nil {
			return err
		}
		if err := report.WriteFiles(target, o.Result); err != nil {
			return err
		}
	}

	if format == report.FormatText {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, format.SummaryFile())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	if err := report.WriteSummary(f, format, report.Summaries(outcomes)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
