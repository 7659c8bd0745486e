// Package verify statically checks a compiled protocol graph against
// the protocol well-formedness rules.
//
// Verify never mutates the graph, accumulates every violation it
// finds rather than short-circuiting, and reports diagnostics in a
// deterministic order, so two calls over the same graph always yield
// identical reports.
package verify

import (
	"fmt"
	"sort"

	"github.com/onemanifold/SMPST-sub003/cfg"
)

// Diagnostic codes, one per check.
const (
	// CodeChoiceSubject: the deciding role of a choice is not the
	// sender of the first message in every option.
	CodeChoiceSubject = "choice-subject"

	// CodeChoiceKnowledge: a role participating in several
	// options cannot tell them apart from the first message it
	// receives.
	CodeChoiceKnowledge = "choice-knowledge"

	// CodeParallelRaces: a role is active in two branches of the
	// same parallel region.
	CodeParallelRaces = "parallel-races"

	// CodeUnguardedRecursion: a recursion can loop without any
	// message occurring.
	CodeUnguardedRecursion = "unguarded-recursion"

	// CodeUnusedRole: a declared role appears in no message.
	CodeUnusedRole = "unused-role"
)

// Diagnostic is one well-formedness violation.
type Diagnostic struct {
	Code    string     `json:"code" yaml:"code"`
	Message string     `json:"message" yaml:"message"`
	NodeID  cfg.NodeID `json:"nodeId" yaml:"nodeId"`
}

// Report is the result of verifying one graph.  Verification
// failures are data, not faults.
type Report struct {
	Valid       bool         `json:"valid" yaml:"valid"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type checker struct {
	g     *cfg.Graph
	diags []Diagnostic
}

// Verify checks the graph and returns the accumulated report.
func Verify(g *cfg.Graph) *Report {
	c := &checker{g: g}

	c.checkChoiceSubjects()
	c.checkChoiceKnowledge()
	c.checkParallelRaces()
	c.checkRecursionGuards()
	c.checkRoleCoverage()

	return &Report{
		Valid:       len(c.diags) == 0,
		Diagnostics: c.diags,
	}
}

func (c *checker) flag(code string, node cfg.NodeID, format string, args ...interface{}) {
	c.diags = append(c.diags, Diagnostic{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		NodeID:  node,
	})
}

// firstActions collects the action nodes reachable from 'from'
// without crossing another action first.
func (c *checker) firstActions(from cfg.NodeID, stop cfg.NodeID) []*cfg.Node {
	var acc []*cfg.Node
	seen := make(map[cfg.NodeID]bool)

	var walk func(id cfg.NodeID)
	walk = func(id cfg.NodeID) {
		if seen[id] || id == stop {
			return
		}
		seen[id] = true
		n := c.g.Node(id)
		if n.Type == cfg.NodeAction {
			acc = append(acc, n)
			return
		}
		for _, e := range c.g.OutEdges(id) {
			walk(e.To)
		}
	}
	walk(from)

	sort.Slice(acc, func(i, j int) bool { return acc[i].ID < acc[j].ID })
	return acc
}

// region collects, in preorder, the action nodes reachable from
// 'from' without crossing 'stop'.
func (c *checker) region(from cfg.NodeID, stop cfg.NodeID) []*cfg.Node {
	var acc []*cfg.Node
	seen := make(map[cfg.NodeID]bool)

	var walk func(id cfg.NodeID)
	walk = func(id cfg.NodeID) {
		if seen[id] || id == stop {
			return
		}
		seen[id] = true
		n := c.g.Node(id)
		if n.Type == cfg.NodeAction {
			acc = append(acc, n)
		}
		for _, e := range c.g.OutEdges(id) {
			walk(e.To)
		}
	}
	walk(from)
	return acc
}

// checkChoiceSubjects requires the deciding role to be the sender of
// the first message in every option, so the decision is locally
// observable by the role that makes it.
func (c *checker) checkChoiceSubjects() {
	for id := range c.g.Nodes {
		n := c.g.Node(cfg.NodeID(id))
		if n.Type != cfg.NodeBranch {
			continue
		}
		for _, e := range c.g.OutEdges(n.ID) {
			firsts := c.firstActions(e.To, n.Merge)
			if len(firsts) == 0 {
				c.flag(CodeChoiceSubject, n.ID,
					"option %s of choice at %s starts with no message",
					e.Label, n.At)
				continue
			}
			for _, a := range firsts {
				if a.From != n.At {
					c.flag(CodeChoiceSubject, n.ID,
						"option %s of choice at %s starts with a message from %s",
						e.Label, n.At, a.From)
				}
			}
		}
	}
}

// checkChoiceKnowledge requires every role other than the deciding
// one that participates in more than one option to receive a
// distinctly labeled first message in each of those options.
func (c *checker) checkChoiceKnowledge() {
	for id := range c.g.Nodes {
		n := c.g.Node(cfg.NodeID(id))
		if n.Type != cfg.NodeBranch {
			continue
		}

		type optionView struct {
			label         string
			participates  map[string]bool
			firstReceived map[string]string
		}

		var views []optionView
		for _, e := range c.g.OutEdges(n.ID) {
			v := optionView{
				label:         e.Label,
				participates:  make(map[string]bool),
				firstReceived: make(map[string]string),
			}
			for _, a := range c.region(e.To, n.Merge) {
				v.participates[a.From] = true
				v.participates[a.To] = true
				if _, have := v.firstReceived[a.To]; !have {
					v.firstReceived[a.To] = a.Label
				}
			}
			views = append(views, v)
		}

		var roles []string
		in := make(map[string]int)
		for _, v := range views {
			for role := range v.participates {
				if in[role] == 0 {
					roles = append(roles, role)
				}
				in[role]++
			}
		}
		sort.Strings(roles)

		for _, role := range roles {
			if role == n.At || in[role] < 2 {
				continue
			}
			labels := make(map[string]bool)
			ambiguous := false
			for _, v := range views {
				if !v.participates[role] {
					continue
				}
				label, have := v.firstReceived[role]
				if !have || labels[label] {
					ambiguous = true
					break
				}
				labels[label] = true
			}
			if ambiguous {
				c.flag(CodeChoiceKnowledge, n.ID,
					"role %s cannot tell the options of the choice at %s apart",
					role, n.At)
			}
		}
	}
}

// checkParallelRaces flags roles active in more than one branch of
// the same parallel region: their messages across branches have no
// ordering, so deliveries can race.
func (c *checker) checkParallelRaces() {
	for id := range c.g.Nodes {
		n := c.g.Node(cfg.NodeID(id))
		if n.Type != cfg.NodeFork {
			continue
		}
		join := c.joinFor(n.ParallelID)

		var roles []string
		in := make(map[string]int)
		for _, e := range c.g.OutEdges(n.ID) {
			branchRoles := make(map[string]bool)
			for _, a := range c.region(e.To, join) {
				branchRoles[a.From] = true
				branchRoles[a.To] = true
			}
			for role := range branchRoles {
				if in[role] == 0 {
					roles = append(roles, role)
				}
				in[role]++
			}
		}
		sort.Strings(roles)

		for _, role := range roles {
			if in[role] > 1 {
				c.flag(CodeParallelRaces, n.ID,
					"role %s is active in %d branches of the same parallel region",
					role, in[role])
			}
		}
	}
}

// checkRecursionGuards rejects loops that can return to their
// recursive node without a single message occurring.
func (c *checker) checkRecursionGuards() {
	for id := range c.g.Nodes {
		n := c.g.Node(cfg.NodeID(id))
		if n.Type != cfg.NodeRecursive {
			continue
		}

		// Walk from the recursive node, not expanding past
		// action nodes.  Reaching the node again means a
		// message-free cycle exists.
		seen := make(map[cfg.NodeID]bool)
		unguarded := false

		var walk func(id cfg.NodeID)
		walk = func(id cfg.NodeID) {
			if unguarded || seen[id] {
				return
			}
			seen[id] = true
			if c.g.Node(id).Type == cfg.NodeAction {
				return
			}
			for _, e := range c.g.OutEdges(id) {
				if e.To == n.ID {
					unguarded = true
					return
				}
				walk(e.To)
			}
		}
		walk(n.ID)

		if unguarded {
			c.flag(CodeUnguardedRecursion, n.ID,
				"recursion %s can loop without any message", n.Label)
		}
	}
}

// checkRoleCoverage requires every declared role to take part in at
// least one message.
func (c *checker) checkRoleCoverage() {
	used := make(map[string]bool)
	for id := range c.g.Nodes {
		n := c.g.Node(cfg.NodeID(id))
		if n.Type == cfg.NodeAction {
			used[n.From] = true
			used[n.To] = true
		}
	}
	for _, role := range c.g.Roles {
		if !used[role] {
			c.flag(CodeUnusedRole, cfg.NoNode, "role %s never sends or receives", role)
		}
	}
}

func (c *checker) joinFor(pid int) cfg.NodeID {
	for _, n := range c.g.Nodes {
		if n.Type == cfg.NodeJoin && n.ParallelID == pid {
			return n.ID
		}
	}
	return cfg.NoNode
}
