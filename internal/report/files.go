// Package report writes analysis results: the per-depth data files consumed
// by plotting scripts, machine-readable summaries and a terminal table.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moolen/mergetrace/internal/analyzer"
	"github.com/moolen/mergetrace/internal/depthstats"
)

// File names written by WriteFiles.
const (
	AveragesFile    = "avg_stats_per_depth.out"
	histogramFormat = "hist_at_%d.dat"
	childrenFormat  = "children_at_%d.child"
)

// HistogramFile is the histogram file name of depth d.
func HistogramFile(d int) string { return fmt.Sprintf(histogramFormat, d) }

// ChildrenFile is the child ranking file name of depth d.
func ChildrenFile(d int) string { return fmt.Sprintf(childrenFormat, d) }

// WriteFiles writes the histogram, averages and child ranking files of res
// into dir, creating it if needed.
func WriteFiles(dir string, res *analyzer.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}
	for _, d := range res.Depths {
		if err := writeFile(filepath.Join(dir, HistogramFile(d.Depth)), func(w *bufio.Writer) {
			writeHistogram(w, d, res.Histogram)
		}); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, ChildrenFile(d.Depth)), func(w *bufio.Writer) {
			writeChildren(w, d)
		}); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, AveragesFile), func(w *bufio.Writer) {
		writeAverages(w, res.Depths)
	})
}

func writeFile(path string, body func(w *bufio.Writer)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	w := bufio.NewWriter(f)
	body(w)
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", path, err)
	}
	return nil
}

// writeHistogram emits one row per bin and a closing row at the upper edge
// repeating the last bin, so step plots draw the final bin.
func writeHistogram(w *bufio.Writer, d depthstats.DepthStats, opts depthstats.Options) {
	fmt.Fprintln(w, "reward count simcount initcount")
	for j := 0; j < opts.Bins; j++ {
		fmt.Fprintf(w, "%.6f %d %d %d\n", opts.BinStart(j), d.Rewards[j], d.Visits[j], d.Initial[j])
	}
	last := opts.Bins - 1
	fmt.Fprintf(w, "%.6f %d %d %d\n", opts.BinStart(opts.Bins), d.Rewards[last], d.Visits[last], d.Initial[last])
}

func writeAverages(w *bufio.Writer, depths []depthstats.DepthStats) {
	fmt.Fprintln(w, "depth nodecount avgreward avgsim avginit")
	for _, d := range depths {
		fmt.Fprintf(w, "%d %d %.6f %.6f %.6f\n", d.Depth, d.NodeCount, d.MeanReward, d.MeanSimTime, d.MeanInitTime)
	}
}

func writeChildren(w *bufio.Writer, d depthstats.DepthStats) {
	for _, c := range d.Children {
		fmt.Fprintf(w, "%d;%s\n", c.Children, c.Vars)
	}
}
