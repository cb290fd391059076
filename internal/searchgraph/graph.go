package searchgraph

import (
	"errors"
	"fmt"

	"github.com/moolen/mergetrace/internal/logging"
)

var (
	// ErrKeyTooSmall is returned by Admit for sets with fewer than two
	// variables. The log format has no representation for them.
	ErrKeyTooSmall = errors.New("merge decision needs at least two variables")

	// ErrObservationOverflow is returned by Observe when an observation count
	// would no longer fit in a uint64.
	ErrObservationOverflow = errors.New("observation count overflow")
)

// Graph is the key-addressed node arena of one search run.
type Graph struct {
	nodes      map[Key]*Node
	order      []*Node
	root       *Node
	maxKeySize int
	logger     *logging.Logger
}

// New returns a graph that holds only Root.
func New() *Graph {
	root := &Node{vars: VarSet{}, key: RootKey}
	return &Graph{
		nodes:  map[Key]*Node{RootKey: root},
		order:  []*Node{root},
		root:   root,
		logger: logging.GetLogger("searchgraph"),
	}
}

// Root returns the synthetic empty-set node.
func (g *Graph) Root() *Node { return g.root }

// Len returns the number of nodes, Root included.
func (g *Graph) Len() int { return len(g.order) }

// MaxKeySize returns the size of the largest admitted set.
func (g *Graph) MaxKeySize() int { return g.maxKeySize }

// Lookup returns the node registered under k.
func (g *Graph) Lookup(k Key) (*Node, bool) {
	n, ok := g.nodes[k]
	return n, ok
}

// Nodes returns all nodes in creation order, Root first.
func (g *Graph) Nodes() []*Node { return g.order }

// Admit returns the node for vs, creating it on first sighting. A new node is
// wired to Root when it has two variables, otherwise to every node already
// registered under vs minus one element. Existing nodes are returned as-is.
func (g *Graph) Admit(vs VarSet) (*Node, bool, error) {
	key := vs.Key()
	if n, ok := g.nodes[key]; ok {
		return n, false, nil
	}
	if vs.Len() < 2 {
		return nil, false, fmt.Errorf("admit %s: %w", vs, ErrKeyTooSmall)
	}

	child := &Node{vars: vs, key: key}
	if vs.Len() == 2 {
		g.link(g.root, child)
	} else {
		for i := range vs {
			if parent, ok := g.nodes[vs.Without(i).Key()]; ok {
				g.link(parent, child)
			}
		}
	}

	g.nodes[key] = child
	g.order = append(g.order, child)

	if vs.Len() > g.maxKeySize {
		g.maxKeySize = vs.Len()
		g.logger.Debug("merge size %d reached at node %s", g.maxKeySize, vs)
	}
	return child, true, nil
}

// link adds the symmetric parent/child edge.
func (g *Graph) link(parent, child *Node) {
	parent.children = append(parent.children, child.key)
	child.parents = append(child.parents, parent.key)
}
