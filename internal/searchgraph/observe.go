package searchgraph

import (
	"fmt"
	"math"
)

// Observe folds reward into n with weight 1 and propagates it to every
// ancestor of n, layer by layer. Each ancestor is weighted by the number of
// distinct parent paths leading to it from n. The first observation of n also
// sets its InitialReward.
//
// On ErrObservationOverflow the graph is left partially updated and should be
// discarded.
func (g *Graph) Observe(n *Node, reward float64) error {
	if n.Observations == 0 {
		n.InitialReward = reward
	}
	if err := fold(n, reward, 1); err != nil {
		return err
	}

	layer := newWeights()
	for _, p := range n.parents {
		if err := layer.add(p, 1); err != nil {
			return err
		}
	}

	for len(layer.keys) > 0 {
		next := newWeights()
		for _, k := range layer.keys {
			w := layer.weight[k]
			node := g.nodes[k]
			if err := fold(node, reward, w); err != nil {
				return err
			}
			for _, p := range node.parents {
				if err := next.add(p, w); err != nil {
					return err
				}
			}
		}
		layer = next
	}
	return nil
}

// fold applies mean = (mean*n + w*r) / (n + w) and n += w.
func fold(n *Node, reward float64, w uint64) error {
	if n.Observations > math.MaxUint64-w {
		return fmt.Errorf("node %s: %w", n.vars, ErrObservationOverflow)
	}
	count := float64(n.Observations)
	n.MeanReward = (n.MeanReward*count + float64(w)*reward) / (count + float64(w))
	n.Observations += w
	return nil
}

// weights is one propagation layer: the pending weight per node, in the order
// nodes were first reached.
type weights struct {
	keys   []Key
	weight map[Key]uint64
}

func newWeights() *weights {
	return &weights{weight: make(map[Key]uint64)}
}

func (ws *weights) add(k Key, w uint64) error {
	cur, ok := ws.weight[k]
	if !ok {
		ws.keys = append(ws.keys, k)
	}
	if cur > math.MaxUint64-w {
		return fmt.Errorf("pending weight for %q: %w", k, ErrObservationOverflow)
	}
	ws.weight[k] = cur + w
	return nil
}
