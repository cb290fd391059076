package searchgraph

// JumpCounter counts trajectory discontinuities: consecutive decisions with
// more than two variables that share fewer than two of them. Two-variable
// decisions are ignored.
type JumpCounter struct {
	last  VarSet
	seen  bool
	jumps int
}

// Add feeds the next decision and reports whether it was a jump.
func (jc *JumpCounter) Add(vs VarSet) bool {
	if vs.Len() <= 2 {
		return false
	}
	jumped := jc.seen && jc.last.IntersectionSize(vs) < 2
	if jumped {
		jc.jumps++
	}
	jc.last = vs
	jc.seen = true
	return jumped
}

// Jumps returns the number of jumps counted so far.
func (jc *JumpCounter) Jumps() int { return jc.jumps }

// CountJumps counts the jumps along a whole trajectory.
func CountJumps(trajectory []VarSet) int {
	var jc JumpCounter
	for _, vs := range trajectory {
		jc.Add(vs)
	}
	return jc.Jumps()
}
