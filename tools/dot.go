package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"

	"github.com/onemanifold/SMPST-sub003/cfg"
)

var (
	dotFills = map[cfg.NodeType]string{
		cfg.NodeAction:    "#99ddc8",
		cfg.NodeBranch:    "#2d93ad",
		cfg.NodeMerge:     "#cccccc",
		cfg.NodeFork:      "#52aa5e",
		cfg.NodeJoin:      "#52aa5e",
		cfg.NodeRecursive: "#f2d479",
		cfg.NodeEnd:       "#888888",
	}

	dotShapes = map[cfg.NodeType]string{
		cfg.NodeAction:    "record",
		cfg.NodeBranch:    "diamond",
		cfg.NodeMerge:     "circle",
		cfg.NodeFork:      "rect",
		cfg.NodeJoin:      "rect",
		cfg.NodeRecursive: "oval",
		cfg.NodeEnd:       "doublecircle",
	}
)

func nodeLabel(n *cfg.Node) string {
	switch n.Type {
	case cfg.NodeAction:
		label := n.Label
		if n.Payload != "" {
			label += "(" + n.Payload + ")"
		}
		return fmt.Sprintf("%s → %s: %s", n.From, n.To, label)
	case cfg.NodeBranch:
		return "choice at " + n.At
	case cfg.NodeRecursive:
		return "rec " + n.Label
	case cfg.NodeFork:
		return fmt.Sprintf("fork %d", n.ParallelID)
	case cfg.NodeJoin:
		return fmt.Sprintf("join %d", n.ParallelID)
	case cfg.NodeEnd:
		return "end"
	default:
		return n.Type.String()
	}
}

// Dot writes a Graphviz rendering of the graph.  If current is a
// valid node id, that node is highlighted (for showing where a
// simulation is).
func Dot(g *cfg.Graph, w io.Writer, current cfg.NodeID) error {
	f := func(format string, args ...interface{}) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	}

	if err := f("digraph %q {", g.Name); err != nil {
		return err
	}
	f(`  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]`)
	f(`  node [style="rounded,filled"]`)
	f(`  edge [fontsize="12"]`)

	for i := range g.Nodes {
		n := g.Node(cfg.NodeID(i))
		color := "black"
		fill := dotFills[n.Type]
		if n.ID == current {
			color = "red"
			fill = "#f98b8b"
		}
		if err := f(`  n%d [shape=%q, color=%q, fillcolor=%q, label=%q]`,
			n.ID, dotShapes[n.Type], color, fill, nodeLabel(n)); err != nil {
			return err
		}
	}

	for _, e := range g.Edges {
		attrs := ""
		switch e.Type {
		case cfg.EdgeChoice:
			attrs = fmt.Sprintf(` [label=%q]`, e.Label)
		case cfg.EdgeBack:
			attrs = ` [style=dashed, constraint=false]`
		case cfg.EdgeEpsilon:
			attrs = ` [style=dotted]`
		case cfg.EdgeParallel:
			attrs = ` [style=bold]`
		}
		if err := f("  n%d -> n%d%s", e.From, e.To, attrs); err != nil {
			return err
		}
	}

	return f("}")
}
