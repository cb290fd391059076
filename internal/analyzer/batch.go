package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one file in a batch.
type Outcome struct {
	Path   string
	Result *Result
	Cached bool
	Err    error
}

// AnalyzeAll analyzes paths with at most Options.Workers files in flight.
// Outcomes are returned in input order. A failing file only affects its own
// outcome; the returned error is non-nil only when ctx was cancelled.
func (a *Analyzer) AnalyzeAll(ctx context.Context, paths []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{Path: path, Err: err}
				return nil
			}
			res, cached, err := a.analyzeFile(gctx, path)
			outcomes[i] = Outcome{Path: path, Result: res, Cached: cached, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	a.logger.Info("Analyzed %d files (%d failed, %d cached entries)", len(paths), failed, a.cache.len())
	return outcomes, ctx.Err()
}
