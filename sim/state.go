package sim

import "github.com/onemanifold/SMPST-sub003/cfg"

// cursor tracks one thread of control through the graph.  Inside a
// parallel region the cursor holds one child cursor per branch, each
// with its own recursion history seeded from the parent's; children
// of children cover nested regions.
//
// Cursors are explicit values: Step works on a deep copy and commits
// it only on success, so a failed step never disturbs prior state.
type cursor struct {
	at cfg.NodeID

	// visits counts traversals of recursive nodes by label.
	visits map[string]int

	// bound is the join node of the enclosing parallel region, if
	// this cursor is a branch of one.  The cursor never advances
	// past it.
	bound cfg.NodeID

	// Region owned by this cursor: one child per branch, the
	// region's join node and id, and the round-robin position.
	branches []*cursor
	rjoin    cfg.NodeID
	rpid     int
	rr       int
}

func newCursor(at cfg.NodeID) *cursor {
	return &cursor{
		at:     at,
		visits: make(map[string]int),
		bound:  cfg.NoNode,
		rjoin:  cfg.NoNode,
	}
}

func (c *cursor) copy() *cursor {
	visits := make(map[string]int, len(c.visits))
	for label, n := range c.visits {
		visits[label] = n
	}
	acc := &cursor{
		at:     c.at,
		visits: visits,
		bound:  c.bound,
		rjoin:  c.rjoin,
		rpid:   c.rpid,
		rr:     c.rr,
	}
	if c.branches != nil {
		acc.branches = make([]*cursor, len(c.branches))
		for i, br := range c.branches {
			acc.branches[i] = br.copy()
		}
	}
	return acc
}

// done reports whether this cursor has reached its enclosing region's
// join node (and has no region of its own still open).
func (c *cursor) done() bool {
	return c.branches == nil && c.bound != cfg.NoNode && c.at == c.bound
}

// Choice is one selectable option at a branch node.
type Choice struct {
	Label  string     `json:"label" yaml:"label"`
	Target cfg.NodeID `json:"target" yaml:"target"`
}

// State is a read-only snapshot of a simulator (or of one parallel
// branch of it).
type State struct {
	Current    cfg.NodeID `json:"current" yaml:"current"`
	AtChoice   bool       `json:"atChoice" yaml:"atChoice"`
	Choices    []Choice   `json:"choices,omitempty" yaml:"choices,omitempty"`
	InParallel bool       `json:"inParallel" yaml:"inParallel"`
	Branches   []*State   `json:"branches,omitempty" yaml:"branches,omitempty"`
	Completed  bool       `json:"completed" yaml:"completed"`

	// Visits reports recursion traversal counts.  Diagnostic
	// only; the simulator does not bound traversals unless
	// Config.MaxLoop is set.
	Visits map[string]int `json:"visits,omitempty" yaml:"visits,omitempty"`
}

func (s *Simulator) snapshot(c *cursor) *State {
	st := &State{
		Current:    c.at,
		InParallel: c.branches != nil,
	}

	if len(c.visits) > 0 {
		st.Visits = make(map[string]int, len(c.visits))
		for label, n := range c.visits {
			st.Visits[label] = n
		}
	}

	if c.branches != nil {
		st.Branches = make([]*State, len(c.branches))
		for i, br := range c.branches {
			st.Branches[i] = s.snapshot(br)
		}
		return st
	}

	if s.graph.Node(c.at).Type == cfg.NodeBranch {
		st.AtChoice = true
		for _, e := range s.graph.OutEdges(c.at) {
			if e.Type == cfg.EdgeChoice {
				st.Choices = append(st.Choices, Choice{Label: e.Label, Target: e.To})
			}
		}
	}

	return st
}
