package searchgraph

// Depths groups nodes by their shortest edge distance from Root. Index 0
// holds only Root. Within a depth, nodes keep the order in which the
// breadth-first walk first reached them.
func (g *Graph) Depths() [][]*Node {
	visited := map[Key]struct{}{RootKey: {}}
	frontier := []*Node{g.root}

	var depths [][]*Node
	for len(frontier) > 0 {
		depths = append(depths, frontier)
		var next []*Node
		for _, n := range frontier {
			for _, c := range n.children {
				if _, seen := visited[c]; seen {
					continue
				}
				visited[c] = struct{}{}
				next = append(next, g.nodes[c])
			}
		}
		frontier = next
	}
	return depths
}
