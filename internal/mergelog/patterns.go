package mergelog

import (
	"fmt"
	"regexp"
)

// Patterns are the regular expressions recognising the log lines of a search
// run. Each must contain exactly one capture group.
type Patterns struct {
	// Reward captures the decimal reward of a finished simulation.
	Reward string `yaml:"reward" json:"reward"`
	// Merge captures the whitespace-separated merged variable indices.
	Merge string `yaml:"merge" json:"merge"`
	// BeforeRecompute, AfterRecompute and AfterSimulation capture the
	// timestamps bracketing one simulation. They are optional.
	BeforeRecompute string `yaml:"before_recompute" json:"before_recompute"`
	AfterRecompute  string `yaml:"after_recompute" json:"after_recompute"`
	AfterSimulation string `yaml:"after_simulation" json:"after_simulation"`
}

// DefaultPatterns returns the patterns of the merge-and-shrink search log.
func DefaultPatterns() Patterns {
	return Patterns{
		Reward:          `Reward for this simulation: (\d+\.*\d*)`,
		Merge:           `merged variables \{([\d\s]*)\}`,
		BeforeRecompute: `t=(\d+\.*\d*)s \(Before recomputing FTS\)`,
		AfterRecompute:  `t=(\d+\.*\d*)s \(After recomputing FTS\)`,
		AfterSimulation: `t=(\d+\.*\d*)s \(Time after simulation\)`,
	}
}

// Validate compiles every pattern.
func (p Patterns) Validate() error {
	_, err := p.compile()
	return err
}

const (
	markerBeforeRecompute = iota
	markerAfterRecompute
	markerAfterSimulation
	markerCount
)

type matcher struct {
	reward  *regexp.Regexp
	merge   *regexp.Regexp
	markers [markerCount]*regexp.Regexp
}

func (p Patterns) compile() (*matcher, error) {
	m := &matcher{}
	var err error
	if m.reward, err = compileOne("reward", p.Reward, true); err != nil {
		return nil, err
	}
	if m.merge, err = compileOne("merge", p.Merge, true); err != nil {
		return nil, err
	}
	markers := [markerCount]struct{ name, expr string }{
		{"before_recompute", p.BeforeRecompute},
		{"after_recompute", p.AfterRecompute},
		{"after_simulation", p.AfterSimulation},
	}
	for i, mk := range markers {
		if m.markers[i], err = compileOne(mk.name, mk.expr, false); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// compileOne returns nil for an empty optional pattern.
func compileOne(name, expr string, required bool) (*regexp.Regexp, error) {
	if expr == "" {
		if required {
			return nil, fmt.Errorf("pattern %s must not be empty", name)
		}
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", name, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("pattern %s must have exactly one capture group, has %d", name, re.NumSubexp())
	}
	return re, nil
}
