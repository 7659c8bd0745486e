package tools

import (
	"fmt"
	"html"
	"io"

	"github.com/onemanifold/SMPST-sub003/cfg"
	"github.com/onemanifold/SMPST-sub003/verify"

	md "github.com/russross/blackfriday/v2"
)

// RenderHTML writes an HTML fragment describing the protocol graph
// and, when given, its verification report.  The protocol's doc
// comment is treated as Markdown.
func RenderHTML(g *cfg.Graph, report *verify.Report, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="protocol">`)
	f(`<h2>%s</h2>`, html.EscapeString(g.Name))

	if g.Doc != "" {
		f(`<div class="protocolDoc doc">%s</div>`, md.Run([]byte(g.Doc)))
	}

	f(`<div class="roles">roles:`)
	for _, role := range g.Roles {
		f(` <span class="role">%s</span>`, html.EscapeString(role))
	}
	f(`</div>`)

	{ // Nodes
		f(`<table class="nodes">`)
		f(`<tr><th>id</th><th>type</th><th></th></tr>`)
		for i := range g.Nodes {
			n := g.Node(cfg.NodeID(i))
			f(`<tr class="node"><td><span id="n%d">%d</span></td><td>%s</td><td>%s</td></tr>`,
				n.ID, n.ID, n.Type, html.EscapeString(nodeLabel(n)))
		}
		f(`</table>`)
	}

	{ // Edges
		f(`<table class="edges">`)
		f(`<tr><th>from</th><th>to</th><th>type</th><th>label</th></tr>`)
		for _, e := range g.Edges {
			f(`<tr class="edge"><td><a href="#n%d">%d</a></td><td><a href="#n%d">%d</a></td><td>%s</td><td>%s</td></tr>`,
				e.From, e.From, e.To, e.To, e.Type, html.EscapeString(e.Label))
		}
		f(`</table>`)
	}

	if report != nil {
		if report.Valid {
			f(`<div class="verdict valid">valid</div>`)
		} else {
			f(`<div class="verdict invalid">invalid</div>`)
			f(`<ul class="diagnostics">`)
			for _, d := range report.Diagnostics {
				f(`<li><code>%s</code> %s</li>`,
					d.Code, html.EscapeString(d.Message))
			}
			f(`</ul>`)
		}
	}

	f(`</div>`)

	return nil
}
