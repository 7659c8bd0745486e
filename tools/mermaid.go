package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/onemanifold/SMPST-sub003/cfg"
)

// MermaidOpts controls Mermaid rendering.
type MermaidOpts struct {
	// ShowEdgeTypes labels non-choice edges with their type.
	ShowEdgeTypes bool `json:"showEdgeTypes"`
}

// Mermaid writes a Mermaid (https://mermaid.js.org) flowchart for the
// graph.
func Mermaid(g *cfg.Graph, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{}
	}

	f := func(format string, args ...interface{}) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	}

	if err := f("graph TB"); err != nil {
		return err
	}

	for i := range g.Nodes {
		n := g.Node(cfg.NodeID(i))
		label := strings.ReplaceAll(nodeLabel(n), `"`, `'`)
		switch n.Type {
		case cfg.NodeBranch:
			f(`  n%d{"%s"}`, n.ID, label)
		case cfg.NodeFork, cfg.NodeJoin:
			f(`  n%d[["%s"]]`, n.ID, label)
		case cfg.NodeEnd:
			f(`  n%d(("%s"))`, n.ID, label)
		default:
			f(`  n%d("%s")`, n.ID, label)
		}
	}

	for _, e := range g.Edges {
		switch {
		case e.Type == cfg.EdgeChoice:
			f(`  n%d -->|%s| n%d`, e.From, e.Label, e.To)
		case e.Type == cfg.EdgeBack:
			f(`  n%d -.-> n%d`, e.From, e.To)
		case opts.ShowEdgeTypes:
			f(`  n%d -->|%s| n%d`, e.From, e.Type, e.To)
		default:
			f(`  n%d --> n%d`, e.From, e.To)
		}
	}

	return nil
}
