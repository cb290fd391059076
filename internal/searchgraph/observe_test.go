package searchgraph

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observe(t *testing.T, g *Graph, reward float64, ids ...int) *Node {
	t.Helper()
	n := admit(t, g, ids...)
	require.NoError(t, g.Observe(n, reward))
	return n
}

func TestObserve_Diamond(t *testing.T) {
	g := New()
	a := observe(t, g, 0.2, 1, 2)
	b := observe(t, g, 0.4, 1, 3)

	require.Equal(t, uint64(2), g.Root().Observations)
	require.InDelta(t, 0.3, g.Root().MeanReward, 1e-12)

	c := observe(t, g, 0.9, 1, 2, 3)

	assert.Equal(t, uint64(1), c.Observations)
	assert.InDelta(t, 0.9, c.MeanReward, 1e-12)

	assert.Equal(t, uint64(2), a.Observations, "A gains exactly one observation")
	assert.Equal(t, uint64(2), b.Observations, "B gains exactly one observation")
	assert.InDelta(t, 0.55, a.MeanReward, 1e-12)
	assert.InDelta(t, 0.65, b.MeanReward, 1e-12)

	assert.Equal(t, uint64(4), g.Root().Observations, "two paths C->A->Root and C->B->Root")
	assert.InDelta(t, 0.6, g.Root().MeanReward, 1e-12)
}

func TestObserve_InitialRewardIsKept(t *testing.T) {
	g := New()
	a := observe(t, g, 0.2, 1, 2)
	observe(t, g, 1.0, 1, 2, 3)

	assert.Equal(t, 0.2, a.InitialReward)
	assert.InDelta(t, 0.6, a.MeanReward, 1e-12)
	assert.Equal(t, 0.0, g.Root().InitialReward, "root never receives its own observation")
}

func TestObserve_OrphanDoesNotPropagate(t *testing.T) {
	g := New()
	orphan := observe(t, g, 0.7, 1, 2, 3)
	a := observe(t, g, 0.1, 1, 2)

	assert.Equal(t, uint64(1), orphan.Observations)
	assert.Equal(t, uint64(1), a.Observations, "edges added later never replay observations")
	assert.Equal(t, uint64(1), g.Root().Observations)
}

// TestObserve_MatchesPathCountOracle checks every node of a dense lattice
// against an independent path-counting computation.
func TestObserve_MatchesPathCountOracle(t *testing.T) {
	g := New()
	universe := []int{0, 1, 2, 3, 4, 5}

	var created []*Node
	rewards := map[Key]float64{}
	for size := 2; size <= len(universe); size++ {
		for _, ids := range combinations(universe, size) {
			n := admit(t, g, ids...)
			r := float64((len(created)*7)%11) / 10
			rewards[n.Key()] = r
			require.NoError(t, g.Observe(n, r))
			created = append(created, n)
		}
	}

	memo := map[[2]Key]uint64{}
	var paths func(from, to Key) uint64
	paths = func(from, to Key) uint64 {
		if from == to {
			return 1
		}
		if v, ok := memo[[2]Key{from, to}]; ok {
			return v
		}
		node, _ := g.Lookup(from)
		var total uint64
		for _, p := range node.Parents() {
			total += paths(p, to)
		}
		memo[[2]Key{from, to}] = total
		return total
	}

	for _, target := range g.Nodes() {
		var count uint64
		var sum float64
		for _, src := range created {
			w := paths(src.Key(), target.Key())
			count += w
			sum += float64(w) * rewards[src.Key()]
		}
		assert.Equal(t, count, target.Observations, "count of %s", target.Vars())
		if count > 0 {
			assert.InDelta(t, sum/float64(count), target.MeanReward, 1e-9, "mean of %s", target.Vars())
		}
	}

	// 6 variables: a size-k set reaches the root over k!/2 paths.
	full, _ := g.Lookup(MustVarSet(universe...).Key())
	assert.Equal(t, uint64(360), paths(full.Key(), RootKey))
}

func TestObserve_IsDeterministic(t *testing.T) {
	build := func() []float64 {
		g := New()
		for _, ids := range [][]int{{1, 2}, {2, 3}, {1, 3}, {1, 2, 3}, {3, 4}, {2, 3, 4}, {1, 2, 3, 4}} {
			n, created, err := g.Admit(MustVarSet(ids...))
			require.NoError(t, err)
			require.True(t, created)
			require.NoError(t, g.Observe(n, float64(len(ids))/7))
		}
		var out []float64
		for _, n := range g.Nodes() {
			out = append(out, n.MeanReward, float64(n.Observations))
		}
		return out
	}
	assert.Equal(t, build(), build())
}

func TestObserve_DeepChainIsIterative(t *testing.T) {
	g := New()
	ids := []int{0, 1}
	observe(t, g, 0.5, ids...)
	for v := 2; v < 600; v++ {
		ids = append(ids, v)
		observe(t, g, 0.5, ids...)
	}

	assert.Equal(t, uint64(599), g.Root().Observations)
	assert.InDelta(t, 0.5, g.Root().MeanReward, 1e-12)
}

func TestObserve_Overflow(t *testing.T) {
	g := New()
	a := observe(t, g, 0.5, 1, 2)
	a.Observations = math.MaxUint64

	b := admit(t, g, 1, 2, 3)
	err := g.Observe(b, 0.5)
	assert.True(t, errors.Is(err, ErrObservationOverflow))
}

func combinations(set []int, k int) [][]int {
	var out [][]int
	var rec func(start int, cur []int)
	rec = func(start int, cur []int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i < len(set); i++ {
			rec(i+1, append(cur, set[i]))
		}
	}
	rec(0, nil)
	return out
}
