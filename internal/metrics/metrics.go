// Package metrics exposes Prometheus counters for analysis runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons for SkippedTotal.
const (
	SkipUnmatched = "unmatched"
	SkipMalformed = "malformed"
	SkipTooSmall  = "too_small"
)

// File outcomes for FilesTotal.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Metrics holds the analyzer metrics.
type Metrics struct {
	FilesTotal       *prometheus.CounterVec // Files processed, by outcome
	EventsTotal      prometheus.Counter     // Reward/identifier pairs read
	NodesTotal       prometheus.Counter     // Graph nodes created
	SkippedTotal     *prometheus.CounterVec // Log lines or events dropped, by reason
	JumpsTotal       prometheus.Counter     // Trajectory discontinuities
	MaxDepth         prometheus.Gauge       // Deepest level of the last analyzed graph
	AnalysisDuration prometheus.Histogram   // Wall time per analyzed file
}

// New creates the metrics and registers them with reg, which may be a
// private registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergetrace_files_total",
			Help: "Log files processed, by outcome",
		}, []string{"outcome"}),
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mergetrace_events_total",
			Help: "Merge decisions paired with a reward",
		}),
		NodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mergetrace_nodes_total",
			Help: "Search graph nodes created",
		}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergetrace_skipped_total",
			Help: "Log lines or events skipped, by reason",
		}, []string{"reason"}),
		JumpsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mergetrace_jumps_total",
			Help: "Trajectory jumps between unrelated merge decisions",
		}),
		MaxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mergetrace_max_depth",
			Help: "Deepest level of the most recently analyzed graph",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mergetrace_analysis_duration_seconds",
			Help:    "Time spent analyzing one log file",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.FilesTotal,
		m.EventsTotal,
		m.NodesTotal,
		m.SkippedTotal,
		m.JumpsTotal,
		m.MaxDepth,
		m.AnalysisDuration,
	)
	return m
}

// WriteTextfile writes everything gathered from g to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %q: %w", path, err)
	}
	return nil
}
