package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/mergetrace/internal/lifecycle"
	"github.com/moolen/mergetrace/internal/report"
	"github.com/moolen/mergetrace/internal/watcher"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Re-analyze logs whenever they change",
		Long: `Analyze PATH once, then keep watching it and re-analyze every log that is
written to, until interrupted. Unchanged logs are served from the result cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Directory receiving the data files")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	cfg, err := loadConfig(cmd, root, &opts.analysisFlags)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyze := watchHandler(s, path, opts.outputDir, !info.IsDir(), cmd.OutOrStdout())

	if inputs, err := discover([]string{path}, cfg.Discovery.Extension); err == nil {
		analyze(ctx, paths(inputs))
	} else {
		s.logger.Warn("Initial analysis skipped: %v", err)
	}

	manager, err := startWatching(ctx, s, path, analyze)
	if err != nil {
		return err
	}
	s.logger.Info("Watching %s, press Ctrl+C to stop", path)

	<-ctx.Done()
	s.logger.Info("Shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return manager.Stop(shutdownCtx)
}

// startWatching starts the tracing provider and the watcher under one
// lifecycle manager. On failure the session is closed so buffered spans
// are still flushed.
func startWatching(ctx context.Context, s *session, path string, handler watcher.Handler) (manager *lifecycle.Manager, err error) {
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	w, err := watcher.New(watcher.Config{
		Path:      path,
		Extension: s.cfg.Discovery.Extension,
		Debounce:  time.Duration(s.cfg.Watch.DebounceMillis) * time.Millisecond,
	}, handler)
	if err != nil {
		return nil, err
	}

	manager = lifecycle.NewManager()
	if err := manager.Register(s.tracing); err != nil {
		return nil, err
	}
	if err := manager.Register(w, s.tracing); err != nil {
		return nil, err
	}
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

// watchHandler analyzes a batch of changed logs below root. single tells
// whether root itself is a log file; a directory always gets mirrored
// output, however few of its files changed.
func watchHandler(s *session, root, outputDir string, single bool, out io.Writer) watcher.Handler {
	return func(ctx context.Context, files []string) {
		inputs := make([]input, len(files))
		for i, f := range files {
			inputs[i] = input{path: f, root: root}
		}
		outcomes, err := s.analyzer.AnalyzeAll(ctx, files)
		if err != nil {
			return
		}
		if outputDir != "" {
			if err := writeOutputs(outputDir, inputs, outcomes, report.FormatText, single); err != nil {
				s.logger.Error("Failed to write reports: %v", err)
			}
		}
		report.RenderTable(out, outcomes, terminalWidth(out))
		if err := s.flushMetrics(); err != nil {
			s.logger.Warn("%v", err)
		}
	}
}
