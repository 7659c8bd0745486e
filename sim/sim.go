// Package sim executes a compiled protocol graph one step at a time.
//
// The simulator is a single-threaded, cooperative state machine over
// one deterministic interleaving.  'Parallel' regions are interleaved
// bookkeeping inside one instance, never real concurrency.  A Graph
// may be shared read-only among simulators; a Simulator itself must
// not be stepped concurrently.
//
// Traversal policy (applied uniformly): merge and recursive nodes are
// transparent and are consumed silently within the step that crosses
// them; fork and join each consume one step of their own and emit
// fork and join events; reaching the end node sets Completed on that
// step and emits no extra event.
package sim

import (
	"fmt"

	"github.com/onemanifold/SMPST-sub003/cfg"
)

// Scheduler selects which eligible parallel branch advances on a
// given step.  Both policies are deterministic.
type Scheduler int

const (
	// FirstEligible always advances the first branch, in
	// declaration order, that has not reached its join.
	FirstEligible Scheduler = iota

	// RoundRobin rotates over eligible branches.
	RoundRobin
)

// Config configures a Simulator.
type Config struct {
	// RecordTrace enables the append-only event trace.
	RecordTrace bool

	Scheduler Scheduler

	// MaxLoop, when positive, bounds traversals of each recursion
	// label: a step that would traverse one more than MaxLoop
	// times fails.  The initial entry counts as the first
	// traversal.  Zero means unbounded; statically unguarded loops
	// are the verifier's business, not the simulator's.
	MaxLoop int
}

// Simulator steps a protocol graph.
type Simulator struct {
	graph *cfg.Graph
	conf  Config

	cur       *cursor
	completed bool
	trace     *Trace

	// stuck holds an error found while normalizing the initial
	// position (a silent loop at the very start).  Every Step
	// reports it.
	stuck error
}

// New makes a Simulator positioned at the graph's start node.
func New(g *cfg.Graph, conf Config) *Simulator {
	s := &Simulator{
		graph: g,
		conf:  conf,
		cur:   newCursor(g.Start),
		trace: &Trace{},
	}
	if err := s.advance(s.cur); err != nil {
		s.stuck = err
	} else if s.cur.at == g.End {
		s.completed = true
	}
	return s
}

// GetState returns a read-only snapshot of the current state.
func (s *Simulator) GetState() *State {
	st := s.snapshot(s.cur)
	st.Completed = s.completed
	return st
}

// IsComplete reports whether the simulation reached the end node.
func (s *Simulator) IsComplete() bool {
	return s.completed
}

// Trace returns the recorded trace.  Only meaningful when
// Config.RecordTrace is set.
func (s *Simulator) Trace() *Trace {
	return s.trace
}

// Step advances the simulation by one event.  At a branch node the
// given choice selects the option by label; an empty choice takes the
// first option in declaration order.  A failed Step leaves the state
// unchanged and is safe to retry.
func (s *Simulator) Step(choice string) (*Event, error) {
	if s.stuck != nil {
		return nil, s.stuck
	}
	if s.completed {
		return nil, ErrCompleted
	}

	// Work on a copy and commit only on success.
	root := s.cur.copy()

	ev, err := s.stepCursor(root, choice)
	if err != nil {
		return nil, err
	}

	s.cur = root
	if root.branches == nil && root.at == s.graph.End {
		s.completed = true
	}
	if s.conf.RecordTrace {
		s.trace.add(*ev)
	}
	return ev, nil
}

func (s *Simulator) stepCursor(c *cursor, choice string) (*Event, error) {
	if c.branches != nil {
		return s.stepParallel(c, choice)
	}

	n := s.graph.Node(c.at)
	switch n.Type {
	case cfg.NodeAction:
		ev := &Event{
			Type:  EventMessage,
			Node:  n.ID,
			From:  n.From,
			To:    n.To,
			Label: n.Label,
		}
		e, err := s.graph.SoleEdge(c.at)
		if err != nil {
			return nil, err
		}
		c.at = e.To
		if err := s.advance(c); err != nil {
			return nil, err
		}
		return ev, nil

	case cfg.NodeBranch:
		edges := s.graph.OutEdges(c.at)
		var take *cfg.Edge
		if choice == "" {
			take = edges[0]
		} else {
			labels := make([]string, 0, len(edges))
			for _, e := range edges {
				labels = append(labels, e.Label)
				if e.Label == choice {
					take = e
					break
				}
			}
			if take == nil {
				return nil, &BadChoice{Label: choice, Have: labels}
			}
		}
		ev := &Event{Type: EventChoice, Node: n.ID, Label: take.Label}
		c.at = take.To
		if err := s.advance(c); err != nil {
			return nil, err
		}
		return ev, nil

	case cfg.NodeFork:
		join, err := s.joinFor(n.ParallelID)
		if err != nil {
			return nil, err
		}
		var subs []*cursor
		for _, e := range s.graph.OutEdges(c.at) {
			sub := newCursor(e.To)
			sub.bound = join
			// Seed the branch with the parent's recursion
			// history, so MaxLoop still bounds a back edge
			// that leaves the region.
			for label, n := range c.visits {
				sub.visits[label] = n
			}
			if err := s.advance(sub); err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		c.branches = subs
		c.rjoin = join
		c.rpid = n.ParallelID
		return &Event{Type: EventFork, Node: n.ID, ParallelID: n.ParallelID}, nil

	default:
		return nil, &NotEligible{Node: n.ID, Type: n.Type}
	}
}

func (s *Simulator) stepParallel(c *cursor, choice string) (*Event, error) {
	remaining := false
	for _, br := range c.branches {
		if !br.done() {
			remaining = true
			break
		}
	}

	if !remaining {
		// All branches reached the join: consume it and leave
		// the region.
		ev := &Event{Type: EventJoin, Node: c.rjoin, ParallelID: c.rpid}
		c.at = c.rjoin
		c.branches = nil
		c.rjoin = cfg.NoNode
		c.rpid = 0
		e, err := s.graph.SoleEdge(c.at)
		if err != nil {
			return nil, err
		}
		c.at = e.To
		if err := s.advance(c); err != nil {
			return nil, err
		}
		return ev, nil
	}

	start := 0
	if s.conf.Scheduler == RoundRobin {
		start = c.rr
	}
	for i := 0; i < len(c.branches); i++ {
		k := (start + i) % len(c.branches)
		br := c.branches[k]
		if br.done() {
			continue
		}
		ev, err := s.stepCursor(br, choice)
		if err != nil {
			return nil, err
		}
		if s.conf.Scheduler == RoundRobin {
			c.rr = (k + 1) % len(c.branches)
		}
		return ev, nil
	}

	// Unreachable: remaining was true.
	return nil, &NotEligible{Node: c.at, Type: s.graph.Node(c.at).Type}
}

// advance consumes transparent nodes (merge, recursive) until the
// cursor rests on a steppable node, the end node, or its enclosing
// join.  Re-traversing a recursive node within a single advance means
// the loop contains no message at all.
func (s *Simulator) advance(c *cursor) error {
	seen := make(map[cfg.NodeID]bool)
	for {
		if c.bound != cfg.NoNode && c.at == c.bound {
			return nil
		}
		n := s.graph.Node(c.at)
		switch n.Type {
		case cfg.NodeMerge:
			e, err := s.graph.SoleEdge(c.at)
			if err != nil {
				return err
			}
			c.at = e.To

		case cfg.NodeRecursive:
			if seen[c.at] {
				return &SilentLoop{Label: n.Label}
			}
			seen[c.at] = true
			c.visits[n.Label]++
			if s.conf.MaxLoop > 0 && c.visits[n.Label] > s.conf.MaxLoop {
				return &LoopLimit{Label: n.Label, Limit: s.conf.MaxLoop}
			}
			e, err := s.graph.SoleEdge(c.at)
			if err != nil {
				return err
			}
			c.at = e.To

		default:
			return nil
		}
	}
}

func (s *Simulator) joinFor(pid int) (cfg.NodeID, error) {
	for _, n := range s.graph.Nodes {
		if n.Type == cfg.NodeJoin && n.ParallelID == pid {
			return n.ID, nil
		}
	}
	return cfg.NoNode, &cfg.CompileError{
		Message: fmt.Sprintf("no join for parallel region %d", pid),
	}
}

// Chooser supplies choice labels to Run.  Returning "" takes the
// first option.
type Chooser interface {
	Choose(st *State) (string, error)
}

// FirstChooser always takes the first option.
type FirstChooser struct{}

func (FirstChooser) Choose(*State) (string, error) { return "", nil }

// Run steps until completion or until limit steps have been taken,
// asking the chooser (if any) at every step.  ErrLimited is returned
// when the limit interrupts an incomplete run.
func (s *Simulator) Run(limit int, chooser Chooser) ([]Event, error) {
	var events []Event
	for i := 0; i < limit; i++ {
		if s.completed {
			return events, nil
		}
		choice := ""
		if chooser != nil {
			var err error
			if choice, err = chooser.Choose(s.GetState()); err != nil {
				return events, err
			}
		}
		ev, err := s.Step(choice)
		if err != nil {
			return events, err
		}
		events = append(events, *ev)
	}
	if s.completed {
		return events, nil
	}
	return events, ErrLimited
}
