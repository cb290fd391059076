package searchgraph

// Timing holds the wall-clock offsets, in seconds, that bracket the
// simulation of a node. Valid is false when any marker was missing.
type Timing struct {
	InitTime float64
	SimBegin float64
	SimEnd   float64
	Valid    bool
}

// SimulationTime is SimEnd - InitTime.
func (t Timing) SimulationTime() float64 { return t.SimEnd - t.InitTime }

// InitializationTime is SimBegin - InitTime.
func (t Timing) InitializationTime() float64 { return t.SimBegin - t.InitTime }

// Node is one merge decision. Only the statistics change after creation.
type Node struct {
	vars VarSet
	key  Key

	// MeanReward is the running mean over own and propagated observations.
	MeanReward float64
	// InitialReward is the reward observed when the node was created.
	InitialReward float64
	// Observations counts the observations folded into MeanReward.
	Observations uint64
	// Timing is set by the caller from the log markers, if present.
	Timing Timing

	parents  []Key
	children []Key
}

// Key returns the node identity.
func (n *Node) Key() Key { return n.key }

// Vars returns the merged variables. The slice must not be modified.
func (n *Node) Vars() VarSet { return n.vars }

// Parents returns the keys of the structural parents in wiring order.
func (n *Node) Parents() []Key { return n.parents }

// Children returns the keys of the structural children in wiring order.
func (n *Node) Children() []Key { return n.children }

// IsRoot reports whether n is the synthetic root.
func (n *Node) IsRoot() bool { return n.key == RootKey }
