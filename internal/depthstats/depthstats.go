// Package depthstats summarizes a classified search graph per depth:
// reward histograms, visitation counts, timing averages and child rankings.
package depthstats

import (
	"fmt"
	"math"
	"sort"

	"github.com/moolen/mergetrace/internal/searchgraph"
)

// Options fixes the histogram range shared by every depth.
type Options struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Bins int     `json:"bins" yaml:"bins"`
}

// Validate checks that the range can be binned.
func (o Options) Validate() error {
	if o.Bins <= 0 {
		return fmt.Errorf("histogram bins must be positive, got %d", o.Bins)
	}
	if math.IsNaN(o.Min) || math.IsNaN(o.Max) || o.Max < o.Min {
		return fmt.Errorf("invalid histogram range [%g, %g]", o.Min, o.Max)
	}
	return nil
}

// Width is the size of one bin.
func (o Options) Width() float64 {
	return (o.Max - o.Min) / float64(o.Bins)
}

// Bin returns the bin of v. Values outside the range are clamped, and a zero
// width sends everything to the first bin.
func (o Options) Bin(v float64) int {
	w := o.Width()
	if w == 0 {
		return 0
	}
	b := math.Ceil((v - o.Min) / w)
	if math.IsNaN(b) || b < 0 {
		return 0
	}
	if b > float64(o.Bins-1) {
		return o.Bins - 1
	}
	return int(b)
}

// BinStart is the lower edge of bin j.
func (o Options) BinStart(j int) float64 {
	return o.Min + o.Width()*float64(j)
}

// RangeFromObserved builds options spanning the rewards seen in a run.
func RangeFromObserved(min, max float64, bins int) Options {
	if max < min {
		min, max = max, min
	}
	return Options{Min: min, Max: max, Bins: bins}
}

// ChildCount is one line of the child ranking.
type ChildCount struct {
	Vars     searchgraph.VarSet `json:"vars" yaml:"vars"`
	Children int                `json:"children" yaml:"children"`
}

// DepthStats holds the aggregates of one depth.
type DepthStats struct {
	Depth     int `json:"depth" yaml:"depth"`
	NodeCount int `json:"node_count" yaml:"node_count"`
	// Edges counts child edges leaving this depth.
	Edges int `json:"edges" yaml:"edges"`

	Rewards []uint64 `json:"rewards" yaml:"rewards"`
	Initial []uint64 `json:"initial" yaml:"initial"`
	// Visits is weighted by observation count and stays zero at depth 0.
	Visits []uint64 `json:"visits" yaml:"visits"`

	MeanReward   float64 `json:"mean_reward" yaml:"mean_reward"`
	MeanSimTime  float64 `json:"mean_sim_time" yaml:"mean_sim_time"`
	MeanInitTime float64 `json:"mean_init_time" yaml:"mean_init_time"`
	TimedNodes   int     `json:"timed_nodes" yaml:"timed_nodes"`

	Children []ChildCount `json:"children,omitempty" yaml:"children,omitempty"`
}

// Summarize aggregates every depth. It panics on an empty depth, which a
// breadth-first classification never produces.
func Summarize(depths [][]*searchgraph.Node, opts Options) []DepthStats {
	out := make([]DepthStats, 0, len(depths))
	for d, nodes := range depths {
		out = append(out, summarizeDepth(d, nodes, opts))
	}
	return out
}

func summarizeDepth(depth int, nodes []*searchgraph.Node, opts Options) DepthStats {
	if len(nodes) == 0 {
		panic(fmt.Sprintf("depthstats: depth %d has no nodes", depth))
	}
	s := DepthStats{
		Depth:     depth,
		NodeCount: len(nodes),
		Rewards:   make([]uint64, opts.Bins),
		Initial:   make([]uint64, opts.Bins),
		Visits:    make([]uint64, opts.Bins),
		Children:  make([]ChildCount, 0, len(nodes)),
	}

	var rewardSum, simSum, initSum float64
	for _, n := range nodes {
		s.Rewards[opts.Bin(n.MeanReward)]++
		s.Initial[opts.Bin(n.InitialReward)]++
		if depth > 0 {
			s.Visits[opts.Bin(n.MeanReward)] += n.Observations
		}
		rewardSum += n.MeanReward
		if n.Timing.Valid {
			s.TimedNodes++
			simSum += n.Timing.SimulationTime()
			initSum += n.Timing.InitializationTime()
		}
		children := len(n.Children())
		s.Edges += children
		s.Children = append(s.Children, ChildCount{Vars: n.Vars(), Children: children})
	}

	s.MeanReward = rewardSum / float64(len(nodes))
	if s.TimedNodes > 0 {
		s.MeanSimTime = simSum / float64(s.TimedNodes)
		s.MeanInitTime = initSum / float64(s.TimedNodes)
	}
	sort.SliceStable(s.Children, func(i, j int) bool {
		return s.Children[i].Children > s.Children[j].Children
	})
	return s
}
