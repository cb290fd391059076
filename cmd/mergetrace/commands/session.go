package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moolen/mergetrace/internal/analyzer"
	"github.com/moolen/mergetrace/internal/config"
	"github.com/moolen/mergetrace/internal/discovery"
	"github.com/moolen/mergetrace/internal/logging"
	"github.com/moolen/mergetrace/internal/metrics"
	"github.com/moolen/mergetrace/internal/tracing"
)

// analysisFlags are the analysis settings every analyzing command accepts on
// top of the configuration file.
type analysisFlags struct {
	bins            int
	minReward       float64
	maxReward       float64
	autoRange       bool
	rewardBound     float64
	noRewardBound   bool
	includeRevisits bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.bins, "bins", 0, "Histogram bins (default: config, else 50)")
	cmd.Flags().Float64Var(&f.minReward, "min-reward", 0, "Lower edge of the histogram range")
	cmd.Flags().Float64Var(&f.maxReward, "max-reward", 0, "Upper edge of the histogram range")
	cmd.Flags().BoolVar(&f.autoRange, "auto-range", false, "Use the reward range observed in each file")
	cmd.Flags().Float64Var(&f.rewardBound, "reward-bound", 0, "Largest reward a log may report")
	cmd.Flags().BoolVar(&f.noRewardBound, "no-reward-bound", false, "Accept rewards above the bound")
	cmd.Flags().BoolVar(&f.includeRevisits, "include-revisits", false, "Count jumps over every merge decision, not only first sightings")
}

// loadConfig reads the configuration file and applies the flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command, root *rootOptions, af *analysisFlags) (*config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("workers") {
		cfg.Workers = root.workers
	}
	if changed("extension") {
		cfg.Discovery.Extension = root.extension
	}
	if changed("metrics-file") {
		cfg.MetricsFile = root.metricsFile
	}
	if af != nil {
		if changed("bins") {
			cfg.Histogram.Bins = af.bins
		}
		if changed("min-reward") {
			cfg.Histogram.MinReward = af.minReward
		}
		if changed("max-reward") {
			cfg.Histogram.MaxReward = af.maxReward
		}
		if changed("auto-range") {
			cfg.Histogram.AutoRange = af.autoRange
		}
		if changed("reward-bound") {
			cfg.RewardBound = af.rewardBound
		}
		if changed("no-reward-bound") {
			cfg.EnforceRewardBound = !af.noRewardBound
		}
		if changed("include-revisits") {
			cfg.Jumps.IncludeRevisits = af.includeRevisits
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles what an analyzing command needs.
type session struct {
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	tracing  *tracing.Provider
	registry *prometheus.Registry
	logger   *logging.Logger

	closeOnce sync.Once
	closed    bool
}

func newSession(cfg *config.Config) (*session, error) {
	tp, err := tracing.New(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: cfg.Tracing.TLSInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	a, err := analyzer.New(analyzer.OptionsFromConfig(cfg),
		analyzer.WithMetrics(metrics.New(registry)),
		analyzer.WithTracer(tp.Tracer("github.com/moolen/mergetrace/internal/analyzer")),
	)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		analyzer: a,
		tracing:  tp,
		registry: registry,
		logger:   logging.GetLogger("main"),
	}, nil
}

// flushMetrics writes the metrics textfile when one is configured.
func (s *session) flushMetrics() error {
	if s.cfg.MetricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(s.registry, s.cfg.MetricsFile)
}

// close flushes pending spans. Only the first call has an effect.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.closed = true
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracing.Stop(ctx); err != nil {
			s.logger.Warn("Failed to flush traces: %v", err)
		}
	})
}

// input is one discovered log file and where its reports go.
type input struct {
	path string
	root string
}

// discover expands every argument into log files.
func discover(args []string, ext string) ([]input, error) {
	var inputs []input
	for _, arg := range args {
		files, err := discovery.Discover(arg, ext)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			inputs = append(inputs, input{path: f, root: arg})
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", ext, args)
	}
	return inputs, nil
}

func paths(inputs []input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.path
	}
	return out
}

// terminalWidth is the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// failures turns failed outcomes into the command error.
func failures(outcomes []analyzer.Outcome) error {
	failed := 0
	var first error
	for _, o := range outcomes {
		if o.Err != nil {
			if first == nil {
				first = o.Err
			}
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	if len(outcomes) == 1 {
		return first
	}
	return fmt.Errorf("%d of %d files failed, first: %w", failed, len(outcomes), first)
}
