package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/moolen/mergetrace/internal/config"
	"github.com/moolen/mergetrace/internal/depthstats"
	"github.com/moolen/mergetrace/internal/metrics"
)

type step struct {
	reward float64
	ids    []int
}

func renderLog(steps ...step) string {
	var b strings.Builder
	for _, s := range steps {
		ids := make([]string, len(s.ids))
		for i, id := range s.ids {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "Reward for this simulation: %g\n", s.reward)
		fmt.Fprintf(&b, "merged variables {%s}\n", strings.Join(ids, " "))
	}
	return b.String()
}

func writeLog(t *testing.T, dir, name string, steps ...step) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(renderLog(steps...)), 0644))
	return path
}

func defaultOptions() Options {
	cfg := config.Default()
	opts := OptionsFromConfig(&cfg)
	opts.Workers = 2
	return opts
}

func newAnalyzer(t *testing.T, opts Options, options ...Option) *Analyzer {
	t.Helper()
	a, err := New(opts, options...)
	require.NoError(t, err)
	return a
}

var diamond = []step{
	{reward: 0.5, ids: []int{1, 2}},
	{reward: 0.7, ids: []int{1, 3}},
	{reward: 0.6, ids: []int{1, 2, 3}},
}

func TestAnalyzeReader_Diamond(t *testing.T) {
	a := newAnalyzer(t, defaultOptions())

	res, err := a.AnalyzeReader(context.Background(), "diamond.log", strings.NewReader(renderLog(diamond...)))
	require.NoError(t, err)

	assert.Equal(t, "diamond.log", res.Path)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 4, res.Nodes)
	assert.Equal(t, 3, res.MaxKeySize)
	assert.Equal(t, 2, res.MaxDepth())
	assert.Equal(t, 0, res.Jumps)
	assert.Equal(t, Counters{Lines: 6, Events: 3}, res.Counters)
	assert.Equal(t, 0.5, res.MinReward)
	assert.Equal(t, 0.7, res.MaxReward)
	assert.Equal(t, depthstats.Options{Min: 0, Max: 1, Bins: 50}, res.Histogram)

	require.Len(t, res.Depths, 3)
	assert.InDelta(t, 0.6, res.Depths[0].MeanReward, 1e-12)
	assert.Equal(t, 2, res.Depths[1].NodeCount)
	assert.InDelta(t, 0.6, res.Depths[1].MeanReward, 1e-12)
	assert.Equal(t, 1, res.Depths[2].NodeCount)
}

func TestAnalyzeReader_EmptyLog(t *testing.T) {
	a := newAnalyzer(t, defaultOptions())

	res, err := a.AnalyzeReader(context.Background(), "empty.log", strings.NewReader("nothing here\n"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Nodes)
	require.Len(t, res.Depths, 1)
	assert.Equal(t, 0.0, res.MinReward)
	assert.Equal(t, 0.0, res.MaxReward)
}

func TestAnalyzeReader_RewardBound(t *testing.T) {
	log := renderLog(step{reward: 0.5, ids: []int{1, 2}}, step{reward: 1.5, ids: []int{1, 3}})

	t.Run("enforced", func(t *testing.T) {
		a := newAnalyzer(t, defaultOptions())

		_, err := a.AnalyzeReader(context.Background(), "bad.log", strings.NewReader(log))

		var boundErr *RewardBoundError
		require.True(t, errors.As(err, &boundErr))
		assert.Equal(t, RewardBoundError{Path: "bad.log", Line: 3, Reward: 1.5, Bound: 1}, *boundErr)
		assert.Equal(t, "bad.log:3: reward 1.5 exceeds bound 1", err.Error())
	})

	t.Run("not enforced", func(t *testing.T) {
		opts := defaultOptions()
		opts.EnforceRewardBound = false
		a := newAnalyzer(t, opts)

		res, err := a.AnalyzeReader(context.Background(), "bad.log", strings.NewReader(log))
		require.NoError(t, err)
		assert.Equal(t, 1.5, res.MaxReward)
	})
}

func TestAnalyzeReader_SkipsAndDuplicates(t *testing.T) {
	log := "merged variables {0 1}\n" + renderLog(
		step{reward: 0.1, ids: []int{7}},
		step{reward: 0.2, ids: []int{}},
		step{reward: 0.3, ids: []int{1, 2}},
		step{reward: 0.9, ids: []int{2, 1}},
	)
	a := newAnalyzer(t, defaultOptions())

	res, err := a.AnalyzeReader(context.Background(), "x.log", strings.NewReader(log))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counters.Unmatched)
	assert.Equal(t, 2, res.Counters.TooSmall)
	assert.Equal(t, 1, res.Counters.Duplicates)
	assert.Equal(t, 4, res.Counters.Events)
	assert.Equal(t, 2, res.Nodes)
	assert.InDelta(t, 0.3, res.Depths[1].MeanReward, 1e-12, "duplicates are not observed again")
}

func TestAnalyzeReader_DuplicateRewardsAreNotObservations(t *testing.T) {
	log := renderLog(
		step{reward: 0.3, ids: []int{1, 2}},
		step{reward: 1.5, ids: []int{2, 1}},
		step{reward: 2, ids: []int{7}},
		step{reward: 0.4, ids: []int{1, 3}},
	)
	opts := defaultOptions()
	opts.AutoRange = true
	opts.Histogram = depthstats.Options{Bins: 4}
	a := newAnalyzer(t, opts)

	res, err := a.AnalyzeReader(context.Background(), "x.log", strings.NewReader(log))
	require.NoError(t, err, "rewards of duplicates and too-small keys are not bounded")

	assert.Equal(t, 1, res.Counters.Duplicates)
	assert.Equal(t, 1, res.Counters.TooSmall)
	assert.Equal(t, 0.3, res.MinReward)
	assert.Equal(t, 0.4, res.MaxReward)
	assert.Equal(t, depthstats.Options{Min: 0.3, Max: 0.4, Bins: 4}, res.Histogram)
}

func TestAnalyzeReader_Revisits(t *testing.T) {
	log := renderLog(
		step{reward: 0.1, ids: []int{1, 2, 3}},
		step{reward: 0.2, ids: []int{4, 5, 6}},
		step{reward: 0.3, ids: []int{1, 2, 3}},
	)

	tests := []struct {
		name            string
		includeRevisits bool
		want            int
	}{
		{name: "first sightings", want: 1},
		{name: "every event", includeRevisits: true, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.IncludeRevisits = tt.includeRevisits
			a := newAnalyzer(t, opts)

			res, err := a.AnalyzeReader(context.Background(), "x.log", strings.NewReader(log))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Jumps)
		})
	}
}

func TestAnalyzeReader_AutoRange(t *testing.T) {
	opts := defaultOptions()
	opts.AutoRange = true
	opts.Histogram = depthstats.Options{Bins: 4}
	a := newAnalyzer(t, opts)

	res, err := a.AnalyzeReader(context.Background(), "x.log", strings.NewReader(renderLog(diamond...)))
	require.NoError(t, err)

	assert.Equal(t, depthstats.Options{Min: 0.5, Max: 0.7, Bins: 4}, res.Histogram)
	assert.Len(t, res.Depths[1].Rewards, 4)
}

func TestAnalyzeReader_Cancelled(t *testing.T) {
	a := newAnalyzer(t, defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeReader(ctx, "x.log", strings.NewReader(renderLog(diamond...)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	opts := defaultOptions()
	opts.Patterns.Reward = ""
	_, err := New(opts)
	assert.Error(t, err)

	opts = defaultOptions()
	opts.Histogram.Bins = 0
	_, err = New(opts)
	assert.Error(t, err)
}

func TestAnalyze_Cache(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "run.log", diamond...)
	a := newAnalyzer(t, defaultOptions())

	first, cached, err := a.analyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := a.analyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, first, second)

	writeLog(t, dir, "run.log", append(diamond, step{reward: 0.4, ids: []int{2, 3}})...)

	third, cached, err := a.analyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.Equal(t, 5, third.Nodes)
}

func TestAnalyze_CacheDisabled(t *testing.T) {
	path := writeLog(t, t.TempDir(), "run.log", diamond...)
	opts := defaultOptions()
	opts.CacheSize = 0
	a := newAnalyzer(t, opts)

	first, err := a.Analyze(context.Background(), path)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), path)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAnalyzeAll(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.log", diamond...)
	bad := writeLog(t, dir, "bad.log", step{reward: 3, ids: []int{1, 2}})
	missing := filepath.Join(dir, "missing.log")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := newAnalyzer(t, defaultOptions(), WithMetrics(m))

	outcomes, err := a.AnalyzeAll(context.Background(), []string{good, missing, bad})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, good, outcomes[0].Path)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 4, outcomes[0].Result.Nodes)

	assert.Equal(t, missing, outcomes[1].Path)
	assert.ErrorIs(t, outcomes[1].Err, os.ErrNotExist)

	var boundErr *RewardBoundError
	assert.True(t, errors.As(outcomes[2].Err, &boundErr))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(metrics.OutcomeAnalyzed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(metrics.OutcomeFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesTotal), "root is not counted")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MaxDepth))

	_, err = a.AnalyzeAll(context.Background(), []string{good})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(metrics.OutcomeCached)))
}

func TestAnalyzeAll_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "a.log", diamond...),
		writeLog(t, dir, "b.log", diamond...),
	}
	a := newAnalyzer(t, defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := a.AnalyzeAll(ctx, paths)

	assert.ErrorIs(t, err, context.Canceled)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestAnalyze_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	a := newAnalyzer(t, defaultOptions(), WithTracer(tp.Tracer("test")))

	_, err := a.AnalyzeReader(context.Background(), "ok.log", strings.NewReader(renderLog(diamond...)))
	require.NoError(t, err)
	_, err = a.AnalyzeReader(context.Background(), "bad.log", strings.NewReader(renderLog(step{reward: 2, ids: []int{0, 1}})))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "analyzer.Analyze", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("mergetrace.file", "ok.log"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("mergetrace.nodes", 4))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
