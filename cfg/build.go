package cfg

import (
	"fmt"

	"github.com/onemanifold/SMPST-sub003/parser"
)

// CompileError reports a builder-internal invariant violation.  The
// builder is total over parser-accepted input, so seeing one of these
// means the parser and builder disagree about what was accepted.
type CompileError struct {
	Message string `json:"message"`
}

func (e *CompileError) Error() string {
	return "compile error: " + e.Message
}

// frag is a compiled subgraph: an entry node and, when control can
// fall through the sub-term, an exit node.  A 'continue' has no exit,
// and neither does a recursion whose body never falls through.
//
// empty marks a fragment that contributes no nodes at all (an empty
// block); chaining skips it.
type frag struct {
	entry   NodeID
	exit    NodeID
	hasExit bool
	empty   bool

	// entryType is the edge type a sequential predecessor should
	// use to reach entry.  EdgeBack for 'continue' fragments,
	// EdgeSeq otherwise.
	entryType EdgeType
}

type scopedRec struct {
	label string
	node  NodeID
}

type builder struct {
	g *Graph

	// recs is the lexical stack of enclosing recursion labels, so
	// a back edge always targets an ancestor in construction
	// order, and an inner label shadows an outer one.
	recs []scopedRec

	parallels int
}

// Compile translates a protocol declaration into a Graph.  Sibling
// option and branch order always mirrors source declaration order,
// so traversal and diagnostics are reproducible across runs.
func Compile(p *parser.Protocol) (*Graph, error) {
	b := &builder{
		g: &Graph{
			Name:  p.Name,
			Doc:   p.Doc,
			Roles: append([]string(nil), p.Roles...),
			Start: NoNode,
			End:   NoNode,
		},
	}

	root, err := b.compile(p.Body)
	if err != nil {
		return nil, err
	}

	end := b.newNode(Node{Type: NodeEnd})
	b.g.End = end

	if root.empty {
		b.g.Start = end
	} else {
		b.g.Start = root.entry
		if root.hasExit {
			b.edge(Edge{From: root.exit, To: end, Type: EdgeSeq})
		}
	}

	return b.g, nil
}

func (b *builder) newNode(n Node) NodeID {
	n.ID = NodeID(len(b.g.Nodes))
	b.g.Nodes = append(b.g.Nodes, n)
	b.g.Out = append(b.g.Out, nil)
	return n.ID
}

func (b *builder) edge(e Edge) {
	b.g.Edges = append(b.g.Edges, e)
	b.g.Out[e.From] = append(b.g.Out[e.From], len(b.g.Edges)-1)
}

func (b *builder) compile(term parser.Interaction) (frag, error) {
	switch t := term.(type) {
	case *parser.Message:
		return b.compileMessage(t)
	case *parser.Sequence:
		return b.compileSequence(t)
	case *parser.Choice:
		return b.compileChoice(t)
	case *parser.Parallel:
		return b.compileParallel(t)
	case *parser.Recursion:
		return b.compileRecursion(t)
	case *parser.Continue:
		return b.compileContinue(t)
	default:
		return frag{}, &CompileError{Message: fmt.Sprintf("unknown interaction %T", term)}
	}
}

func (b *builder) compileMessage(m *parser.Message) (frag, error) {
	n := b.newNode(Node{
		Type:    NodeAction,
		From:    m.From,
		To:      m.To,
		Label:   m.Label,
		Payload: m.Payload,
	})
	return frag{entry: n, exit: n, hasExit: true}, nil
}

func (b *builder) compileSequence(s *parser.Sequence) (frag, error) {
	acc := frag{empty: true, hasExit: true}
	connected := true

	for _, item := range s.Items {
		f, err := b.compile(item)
		if err != nil {
			return frag{}, err
		}
		if f.empty {
			continue
		}

		if acc.empty {
			acc = f
			connected = acc.hasExit
			continue
		}

		// A predecessor without an exit (a 'continue') makes
		// the rest of the sequence unreachable.  It is still
		// compiled, just never connected, and the dead tail's
		// exit must not be wired onward either.
		if connected {
			b.edge(Edge{From: acc.exit, To: f.entry, Type: f.entryType})
		}

		connected = connected && f.hasExit
		acc.exit = f.exit
		acc.hasExit = connected
	}

	return acc, nil
}

func (b *builder) compileChoice(c *parser.Choice) (frag, error) {
	branch := b.newNode(Node{Type: NodeBranch, At: c.At, Merge: NoNode})

	type compiled struct {
		f     frag
		label string
	}
	opts := make([]compiled, 0, len(c.Options))
	needMerge := false

	for i, opt := range c.Options {
		f, err := b.compile(opt)
		if err != nil {
			return frag{}, err
		}
		opts = append(opts, compiled{f: f, label: fmt.Sprintf("opt%d", i+1)})
		if f.empty || f.hasExit {
			needMerge = true
		}
	}

	var merge NodeID = NoNode
	if needMerge {
		merge = b.newNode(Node{Type: NodeMerge})
		b.g.Nodes[branch].Merge = merge
	}

	for _, opt := range opts {
		if opt.f.empty {
			b.edge(Edge{From: branch, To: merge, Type: EdgeChoice, Label: opt.label})
			continue
		}
		b.edge(Edge{From: branch, To: opt.f.entry, Type: EdgeChoice, Label: opt.label})
		if opt.f.hasExit {
			b.edge(Edge{From: opt.f.exit, To: merge, Type: EdgeSeq})
		}
	}

	return frag{entry: branch, exit: merge, hasExit: needMerge}, nil
}

func (b *builder) compileParallel(p *parser.Parallel) (frag, error) {
	b.parallels++
	pid := b.parallels

	fork := b.newNode(Node{Type: NodeFork, ParallelID: pid})

	branches := make([]frag, 0, len(p.Branches))
	for _, br := range p.Branches {
		f, err := b.compile(br)
		if err != nil {
			return frag{}, err
		}
		branches = append(branches, f)
	}

	join := b.newNode(Node{Type: NodeJoin, ParallelID: pid})

	for _, f := range branches {
		if f.empty {
			b.edge(Edge{From: fork, To: join, Type: EdgeParallel})
			continue
		}
		b.edge(Edge{From: fork, To: f.entry, Type: EdgeParallel})
		if f.hasExit {
			b.edge(Edge{From: f.exit, To: join, Type: EdgeSeq})
		}
	}

	return frag{entry: fork, exit: join, hasExit: true}, nil
}

func (b *builder) compileRecursion(r *parser.Recursion) (frag, error) {
	rec := b.newNode(Node{Type: NodeRecursive, Label: r.Label})

	b.recs = append(b.recs, scopedRec{label: r.Label, node: rec})
	body, err := b.compile(r.Body)
	b.recs = b.recs[:len(b.recs)-1]
	if err != nil {
		return frag{}, err
	}

	if body.empty {
		// 'rec L { }' just falls through the recursive node.
		return frag{entry: rec, exit: rec, hasExit: true}, nil
	}

	// 'rec L { continue L; }' compiles to a back edge from the
	// recursive node to itself; anything else enters the body
	// silently.
	typ := EdgeEpsilon
	if body.entryType == EdgeBack {
		typ = EdgeBack
	}
	b.edge(Edge{From: rec, To: body.entry, Type: typ})

	return frag{entry: rec, exit: body.exit, hasExit: body.hasExit}, nil
}

// compileContinue contributes no node of its own: it makes the
// sequential predecessor's exit point back at the recursive node, so
// the fragment's entry is that recursive node and its entry edge type
// is EdgeBack.  Control never falls through, so there is no exit.
func (b *builder) compileContinue(c *parser.Continue) (frag, error) {
	for i := len(b.recs) - 1; i >= 0; i-- {
		if b.recs[i].label == c.Label {
			return frag{entry: b.recs[i].node, entryType: EdgeBack}, nil
		}
	}
	// The parser rejects unbound continue labels.
	return frag{}, &CompileError{Message: "continue " + c.Label + " has no enclosing rec"}
}
