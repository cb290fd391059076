// Package analyzer runs the full pipeline over one log file: scan, build the
// search graph, propagate rewards, classify depths, count jumps and
// summarize. Graphs are dropped once summarized; results keep aggregates only.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/mergetrace/internal/config"
	"github.com/moolen/mergetrace/internal/depthstats"
	"github.com/moolen/mergetrace/internal/logging"
	"github.com/moolen/mergetrace/internal/mergelog"
	"github.com/moolen/mergetrace/internal/metrics"
	"github.com/moolen/mergetrace/internal/searchgraph"
)

// Options controls one analysis.
type Options struct {
	Patterns  mergelog.Patterns
	Histogram depthstats.Options
	// AutoRange bins by the rewards observed in each file instead of Histogram's range.
	AutoRange          bool
	RewardBound        float64
	EnforceRewardBound bool
	// IncludeRevisits feeds every identifier event to the jump counter, not
	// only first sightings.
	IncludeRevisits bool
	Workers         int
	CacheSize       int
}

// OptionsFromConfig maps the file configuration onto analyzer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Patterns:           cfg.Patterns,
		Histogram:          cfg.Histogram.Options(),
		AutoRange:          cfg.Histogram.AutoRange,
		RewardBound:        cfg.RewardBound,
		EnforceRewardBound: cfg.EnforceRewardBound,
		IncludeRevisits:    cfg.Jumps.IncludeRevisits,
		Workers:            cfg.Workers,
		CacheSize:          cfg.CacheSize,
	}
}

// Counters describes what happened to the lines of one log.
type Counters struct {
	Lines      int `json:"lines" yaml:"lines"`
	Events     int `json:"events" yaml:"events"`
	Unmatched  int `json:"unmatched" yaml:"unmatched"`
	Malformed  int `json:"malformed" yaml:"malformed"`
	TooSmall   int `json:"too_small" yaml:"too_small"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
}

// Result is the summary of one log file. Cached results are shared and must
// not be modified.
type Result struct {
	Path       string                  `json:"path" yaml:"path"`
	RunID      string                  `json:"run_id" yaml:"run_id"`
	Depths     []depthstats.DepthStats `json:"depths" yaml:"depths"`
	Histogram  depthstats.Options      `json:"histogram" yaml:"histogram"`
	Jumps      int                     `json:"jumps" yaml:"jumps"`
	Counters   Counters                `json:"counters" yaml:"counters"`
	MinReward  float64                 `json:"min_reward" yaml:"min_reward"`
	MaxReward  float64                 `json:"max_reward" yaml:"max_reward"`
	MaxKeySize int                     `json:"max_key_size" yaml:"max_key_size"`
	Nodes      int                     `json:"nodes" yaml:"nodes"`
	Duration   time.Duration           `json:"duration" yaml:"duration"`
}

// MaxDepth is the deepest level reached from Root.
func (r *Result) MaxDepth() int { return len(r.Depths) - 1 }

// Analyzer turns log files into Results. It is safe for concurrent use.
type Analyzer struct {
	opts    Options
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
	cache   *resultCache
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) { a.tracer = t }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New validates opts and returns an Analyzer.
func New(opts Options, options ...Option) (*Analyzer, error) {
	if err := opts.Patterns.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Histogram.Validate(); err != nil && !opts.AutoRange {
		return nil, err
	}
	if opts.Histogram.Bins <= 0 {
		return nil, fmt.Errorf("histogram bins must be positive, got %d", opts.Histogram.Bins)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	cache, err := newResultCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	a := &Analyzer{
		opts:   opts,
		logger: logging.GetLogger("analyzer"),
		tracer: otel.Tracer("github.com/moolen/mergetrace/internal/analyzer"),
		cache:  cache,
	}
	for _, o := range options {
		o(a)
	}
	return a, nil
}

// Analyze summarizes the log at path, serving an unchanged file from cache.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Result, error) {
	r, _, err := a.analyzeFile(ctx, path)
	return r, err
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) (*Result, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		a.countFile(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if r, ok := a.cache.get(path, info); ok {
		a.logger.Debug("Serving %s from cache (run %s)", path, r.RunID)
		a.countFile(metrics.OutcomeCached)
		return r, true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		a.countFile(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	r, err := a.AnalyzeReader(ctx, path, f)
	if err != nil {
		return nil, false, err
	}
	a.cache.add(path, info, r)
	return r, false, nil
}

// AnalyzeReader summarizes the log read from r; name labels the result and
// errors. It never consults the cache.
func (a *Analyzer) AnalyzeReader(ctx context.Context, name string, r io.Reader) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "analyzer.Analyze",
		trace.WithAttributes(attribute.String("mergetrace.file", name)))
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()
	logger := a.logger.WithContext(ctx).WithFields(
		logging.Field("path", name),
		logging.Field("run_id", runID),
	)

	res, err := a.run(ctx, name, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.countFile(metrics.OutcomeFailed)
		logger.ErrorWithErr("Analysis failed", err)
		return nil, err
	}
	res.RunID = runID
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("mergetrace.events", res.Counters.Events),
		attribute.Int("mergetrace.nodes", res.Nodes),
		attribute.Int("mergetrace.max_depth", res.MaxDepth()),
		attribute.Int("mergetrace.jumps", res.Jumps),
	)
	a.record(res)
	logger.InfoWithFields("Log analyzed",
		logging.Field("nodes", res.Nodes),
		logging.Field("depths", len(res.Depths)),
		logging.Field("jumps", res.Jumps),
		logging.Field("duration_ms", res.Duration.Milliseconds()),
	)
	return res, nil
}

// run is the single-threaded pipeline over one private graph.
func (a *Analyzer) run(ctx context.Context, name string, r io.Reader) (*Result, error) {
	scanner, err := mergelog.NewScanner(r, a.opts.Patterns)
	if err != nil {
		return nil, err
	}

	g := searchgraph.New()
	var jumps searchgraph.JumpCounter
	var counters Counters
	minReward, maxReward := math.Inf(1), math.Inf(-1)

	for scanner.Next() {
		if counters.Events%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ev := scanner.Event()
		counters.Events++

		node, created, err := g.Admit(ev.Vars)
		if errors.Is(err, searchgraph.ErrKeyTooSmall) || (err == nil && node.IsRoot()) {
			counters.TooSmall++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, ev.Line, err)
		}
		if !created {
			counters.Duplicates++
			if a.opts.IncludeRevisits {
				jumps.Add(ev.Vars)
			}
			continue
		}

		// Only rewards of newly created nodes are observations.
		if a.opts.EnforceRewardBound && ev.Reward > a.opts.RewardBound {
			return nil, &RewardBoundError{Path: name, Line: ev.RewardLine, Reward: ev.Reward, Bound: a.opts.RewardBound}
		}
		minReward = math.Min(minReward, ev.Reward)
		maxReward = math.Max(maxReward, ev.Reward)
		node.Timing = ev.Timing
		if err := g.Observe(node, ev.Reward); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, ev.Line, err)
		}
		jumps.Add(ev.Vars)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}

	stats := scanner.Stats()
	counters.Lines = stats.Lines
	counters.Unmatched = stats.Unmatched
	counters.Malformed = stats.Malformed

	if math.IsInf(minReward, 1) {
		minReward, maxReward = 0, 0
	}
	hist := a.opts.Histogram
	if a.opts.AutoRange {
		hist = depthstats.RangeFromObserved(minReward, maxReward, hist.Bins)
	}

	return &Result{
		Path:       name,
		Depths:     depthstats.Summarize(g.Depths(), hist),
		Histogram:  hist,
		Jumps:      jumps.Jumps(),
		Counters:   counters,
		MinReward:  minReward,
		MaxReward:  maxReward,
		MaxKeySize: g.MaxKeySize(),
		Nodes:      g.Len(),
	}, nil
}

func (a *Analyzer) countFile(outcome string) {
	if a.metrics == nil {
		return
	}
	a.metrics.FilesTotal.WithLabelValues(outcome).Inc()
}

func (a *Analyzer) record(res *Result) {
	if a.metrics == nil {
		return
	}
	m := a.metrics
	m.FilesTotal.WithLabelValues(metrics.OutcomeAnalyzed).Inc()
	m.EventsTotal.Add(float64(res.Counters.Events))
	// Root is synthetic.
	m.NodesTotal.Add(float64(res.Nodes - 1))
	m.SkippedTotal.WithLabelValues(metrics.SkipUnmatched).Add(float64(res.Counters.Unmatched))
	m.SkippedTotal.WithLabelValues(metrics.SkipMalformed).Add(float64(res.Counters.Malformed))
	m.SkippedTotal.WithLabelValues(metrics.SkipTooSmall).Add(float64(res.Counters.TooSmall))
	m.JumpsTotal.Add(float64(res.Jumps))
	m.MaxDepth.Set(float64(res.MaxDepth()))
	m.AnalysisDuration.Observe(res.Duration.Seconds())
}
