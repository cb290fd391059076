// Package searchgraph rebuilds the decision graph of a merge-and-shrink style
// Monte-Carlo search from the sequence of merge decisions found in its log.
//
// Every node stands for one set of merged variable indices. A node is wired
// to all nodes already in the graph whose set is its own set minus one
// element; two-element sets hang directly off the synthetic Root, which holds
// the empty set. Nodes live in an arena addressed by Key and refer to each
// other by Key only.
//
// Reward observations are folded into a node's running mean and then pushed
// to all ancestors layer by layer. An ancestor reachable over k distinct paths
// receives the observation with weight k, computed once per layer:
//
//	origin:   mean = (mean*n + r) / (n + 1)
//	ancestor: mean = (mean*n + w*r) / (n + w)
//
// Propagation only follows edges that exist at the moment of the observation.
// Edges added later never replay earlier observations.
//
// A Graph is not safe for concurrent use. Each log file owns its own graph.
package searchgraph
