package analyzer

import "fmt"

// RewardBoundError reports a reward above the configured bound. It aborts
// the analysis of the file it was found in.
type RewardBoundError struct {
	Path   string
	Line   int
	Reward float64
	Bound  float64
}

func (e *RewardBoundError) Error() string {
	return fmt.Sprintf("%s:%d: reward %g exceeds bound %g", e.Path, e.Line, e.Reward, e.Bound)
}
