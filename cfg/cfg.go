// Package cfg compiles a parsed protocol into a control-flow graph.
//
// The graph is an arena: nodes and edges live in slices owned by the
// Graph and refer to each other by integer NodeIDs, so a branch, its
// merge, and a recursion's back edge never form ownership cycles.  A
// Graph is immutable once Compile returns; the simulator and the
// verifier hold read-only references and may share one Graph freely.
package cfg

import "fmt"

// NodeID identifies a node within one Graph.
type NodeID int

// NoNode is the id used where a node reference is absent.
const NoNode NodeID = -1

// NodeType is the closed set of CFG node kinds.
type NodeType int

const (
	// NodeAction is a single point-to-point message.
	NodeAction NodeType = iota

	// NodeBranch begins an exclusive choice.  One outgoing
	// EdgeChoice per option.
	NodeBranch

	// NodeMerge is where a choice's options reconverge.
	NodeMerge

	// NodeFork begins a parallel region.  One outgoing
	// EdgeParallel per branch.
	NodeFork

	// NodeJoin ends the parallel region opened by the fork with
	// the same ParallelID.
	NodeJoin

	// NodeRecursive is the re-entry target of 'continue' jumps
	// for its label.
	NodeRecursive

	// NodeEnd marks normal completion.  Terminal.
	NodeEnd
)

var nodeTypeNames = map[NodeType]string{
	NodeAction:    "action",
	NodeBranch:    "branch",
	NodeMerge:     "merge",
	NodeFork:      "fork",
	NodeJoin:      "join",
	NodeRecursive: "recursive",
	NodeEnd:       "end",
}

func (t NodeType) String() string {
	if name, have := nodeTypeNames[t]; have {
		return name
	}
	return fmt.Sprintf("nodeType(%d)", int(t))
}

// EdgeType is the closed set of CFG edge kinds.
type EdgeType int

const (
	// EdgeSeq is ordinary sequencing.
	EdgeSeq EdgeType = iota

	// EdgeChoice leaves a branch node; its Label is the option tag.
	EdgeChoice

	// EdgeParallel leaves a fork node.
	EdgeParallel

	// EdgeBack returns to a recursive node for a 'continue'.
	EdgeBack

	// EdgeEpsilon is a silent transition (a recursive node into
	// its body).
	EdgeEpsilon
)

var edgeTypeNames = map[EdgeType]string{
	EdgeSeq:      "sequential",
	EdgeChoice:   "choice",
	EdgeParallel: "parallel",
	EdgeBack:     "back",
	EdgeEpsilon:  "epsilon",
}

func (t EdgeType) String() string {
	if name, have := edgeTypeNames[t]; have {
		return name
	}
	return fmt.Sprintf("edgeType(%d)", int(t))
}

// Node is one CFG node.  The meaning of the optional fields depends
// on Type: From/To/Label/Payload for actions, At for branches, Label
// for recursive nodes, ParallelID for forks and joins.
type Node struct {
	ID   NodeID   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	From    string `json:"from,omitempty" yaml:"from,omitempty"`
	To      string `json:"to,omitempty" yaml:"to,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`

	At string `json:"at,omitempty" yaml:"at,omitempty"`

	// Merge correlates a branch node with the merge node where its
	// options reconverge.  NoNode when no option falls through.
	// Only meaningful on branch nodes.
	Merge NodeID `json:"merge,omitempty" yaml:"merge,omitempty"`

	ParallelID int `json:"parallelId,omitempty" yaml:"parallelId,omitempty"`
}

// Edge is one directed CFG edge.  Label carries the option tag on
// choice edges.
type Edge struct {
	From  NodeID   `json:"from" yaml:"from"`
	To    NodeID   `json:"to" yaml:"to"`
	Type  EdgeType `json:"type" yaml:"type"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Graph is a compiled protocol.  Nodes are indexed by their NodeID.
// Out holds, per node, the indexes into Edges of that node's
// outgoing edges in declaration order.
type Graph struct {
	Name  string   `json:"name" yaml:"name"`
	Doc   string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Roles []string `json:"roles" yaml:"roles"`

	Nodes []Node  `json:"nodes" yaml:"nodes"`
	Edges []Edge  `json:"edges" yaml:"edges"`
	Out   [][]int `json:"out" yaml:"out"`

	Start NodeID `json:"start" yaml:"start"`
	End   NodeID `json:"end" yaml:"end"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node {
	return &g.Nodes[id]
}

// OutEdges returns the outgoing edges of the given node in
// declaration order.
func (g *Graph) OutEdges(id NodeID) []*Edge {
	out := g.Out[id]
	acc := make([]*Edge, len(out))
	for i, e := range out {
		acc[i] = &g.Edges[e]
	}
	return acc
}

// SoleEdge returns the single outgoing edge of the given node.
func (g *Graph) SoleEdge(id NodeID) (*Edge, error) {
	out := g.Out[id]
	if len(out) != 1 {
		return nil, &CompileError{
			Message: fmt.Sprintf("node %d (%s) has %d outgoing edges, wanted 1",
				id, g.Nodes[id].Type, len(out)),
		}
	}
	return &g.Edges[out[0]], nil
}
