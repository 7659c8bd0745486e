package cfg

import (
	"testing"

	"github.com/onemanifold/SMPST-sub003/parser"
)

func compileOK(t *testing.T, src string) *Graph {
	t.Helper()
	p, err := parser.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// edgesFrom returns the types of the given node's outgoing edges in
// declaration order.
func edgesFrom(g *Graph, id NodeID) []EdgeType {
	var acc []EdgeType
	for _, e := range g.OutEdges(id) {
		acc = append(acc, e.Type)
	}
	return acc
}

func TestCompileChain(t *testing.T) {
	g := compileOK(t, `protocol RR(role Client, role Server) {
		Client -> Server: Request();
		Server -> Client: Response();
	}`)

	if len(g.Nodes) != 3 {
		t.Fatalf("%d nodes", len(g.Nodes))
	}

	first := g.Node(g.Start)
	if first.Type != NodeAction || first.From != "Client" || first.Label != "Request" {
		t.Fatalf("start node %+v", first)
	}

	e, err := g.SoleEdge(g.Start)
	if err != nil {
		t.Fatal(err)
	}
	second := g.Node(e.To)
	if second.Type != NodeAction || second.Label != "Response" {
		t.Fatalf("second node %+v", second)
	}

	e, err = g.SoleEdge(second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.To != g.End || g.Node(g.End).Type != NodeEnd {
		t.Fatalf("chain does not end at the end node")
	}
}

func TestCompileChoice(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B) {
		choice at A { A -> B: Left(); } or { A -> B: Right(); }
		A -> B: Done();
	}`)

	branch := g.Node(g.Start)
	if branch.Type != NodeBranch || branch.At != "A" {
		t.Fatalf("start node %+v", branch)
	}

	out := g.OutEdges(branch.ID)
	if len(out) != 2 {
		t.Fatalf("%d choice edges", len(out))
	}
	if out[0].Type != EdgeChoice || out[0].Label != "opt1" ||
		out[1].Type != EdgeChoice || out[1].Label != "opt2" {
		t.Fatalf("choice edges %+v %+v", out[0], out[1])
	}
	if g.Node(out[0].To).Label != "Left" || g.Node(out[1].To).Label != "Right" {
		t.Fatal("option order does not follow declaration order")
	}

	// Both options reconverge at the branch's merge node.
	if branch.Merge == NoNode {
		t.Fatal("branch has no merge")
	}
	for _, opt := range out {
		e, err := g.SoleEdge(opt.To)
		if err != nil {
			t.Fatal(err)
		}
		if e.To != branch.Merge {
			t.Fatalf("option exits to %d, merge is %d", e.To, branch.Merge)
		}
	}
	if g.Node(branch.Merge).Type != NodeMerge {
		t.Fatalf("merge node %+v", g.Node(branch.Merge))
	}

	// Merge continues into the trailing message.
	e, err := g.SoleEdge(branch.Merge)
	if err != nil {
		t.Fatal(err)
	}
	if g.Node(e.To).Label != "Done" {
		t.Fatalf("after merge %+v", g.Node(e.To))
	}
}

func TestCompileRecursion(t *testing.T) {
	g := compileOK(t, `protocol Loop(role A, role B) {
		rec L {
			A -> B: Tick();
			continue L;
		}
	}`)

	rec := g.Node(g.Start)
	if rec.Type != NodeRecursive || rec.Label != "L" {
		t.Fatalf("start node %+v", rec)
	}

	e, err := g.SoleEdge(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != EdgeEpsilon {
		t.Fatalf("entry edge %v", e.Type)
	}
	tick := g.Node(e.To)
	if tick.Label != "Tick" {
		t.Fatalf("body node %+v", tick)
	}

	back, err := g.SoleEdge(tick.ID)
	if err != nil {
		t.Fatal(err)
	}
	if back.Type != EdgeBack || back.To != rec.ID {
		t.Fatalf("back edge %+v", back)
	}

	// A pure loop never falls through, so nothing reaches the end
	// node.
	for _, e := range g.Edges {
		if e.To == g.End {
			t.Fatalf("edge %+v reaches the end node", e)
		}
	}
}

func TestCompileDegenerateLoop(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B) { rec L { continue L; } }`)

	rec := g.Node(g.Start)
	e, err := g.SoleEdge(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != EdgeBack || e.To != rec.ID {
		t.Fatalf("self edge %+v", e)
	}
}

func TestCompileParallel(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B, role C) {
		par { A -> B: M1(); } and { A -> C: M2(); }
	}`)

	fork := g.Node(g.Start)
	if fork.Type != NodeFork {
		t.Fatalf("start node %+v", fork)
	}

	out := g.OutEdges(fork.ID)
	if len(out) != 2 || out[0].Type != EdgeParallel || out[1].Type != EdgeParallel {
		t.Fatalf("fork edges %v", edgesFrom(g, fork.ID))
	}

	var join *Node
	for _, br := range out {
		e, err := g.SoleEdge(br.To)
		if err != nil {
			t.Fatal(err)
		}
		j := g.Node(e.To)
		if j.Type != NodeJoin {
			t.Fatalf("branch exits to %+v", j)
		}
		if join != nil && join.ID != j.ID {
			t.Fatal("branches join at different nodes")
		}
		join = j
	}

	if fork.ParallelID == 0 || fork.ParallelID != join.ParallelID {
		t.Fatalf("parallel ids %d vs %d", fork.ParallelID, join.ParallelID)
	}

	e, err := g.SoleEdge(join.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.To != g.End {
		t.Fatal("join does not reach the end node")
	}
}

func TestCompileNestedParallelIDs(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B, role C) {
		par {
			par { A -> B: M1(); } and { A -> C: M2(); }
		} and {
			B -> C: M3();
		}
	}`)

	seen := map[int]int{}
	for _, n := range g.Nodes {
		if n.Type == NodeFork || n.Type == NodeJoin {
			seen[n.ParallelID]++
		}
	}
	if len(seen) != 2 {
		t.Fatalf("parallel ids %v", seen)
	}
	for pid, count := range seen {
		if count != 2 {
			t.Fatalf("parallel id %d on %d nodes", pid, count)
		}
	}
}

func TestCompileEmptyProtocolBody(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B) { rec L { } }`)

	rec := g.Node(g.Start)
	if rec.Type != NodeRecursive {
		t.Fatalf("start node %+v", rec)
	}
	e, err := g.SoleEdge(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.To != g.End {
		t.Fatal("empty recursion does not fall through to end")
	}
}

func TestCompileCarriesDeclaration(t *testing.T) {
	g := compileOK(t, `
// Round trip.
protocol RR(role Client, role Server) { Client -> Server: Request(); }`)

	if g.Name != "RR" || g.Doc != "Round trip." {
		t.Fatalf("name %q doc %q", g.Name, g.Doc)
	}
	if len(g.Roles) != 2 || g.Roles[0] != "Client" {
		t.Fatalf("roles %v", g.Roles)
	}
}

func TestCompileUnreachableAfterContinue(t *testing.T) {
	g := compileOK(t, `protocol P(role A, role B) {
		rec L {
			continue L;
			A -> B: Never();
		}
	}`)

	var never *Node
	for i, n := range g.Nodes {
		if n.Type == NodeAction && n.Label == "Never" {
			never = &g.Nodes[i]
		}
	}
	if never == nil {
		t.Fatal("unreachable statement was not compiled")
	}
	for _, e := range g.Edges {
		if e.To == never.ID || e.From == never.ID {
			t.Fatalf("edge %+v touches unreachable node", e)
		}
	}

	// The dead tail contributes no fall-through, so nothing reaches
	// the end node either.
	for _, e := range g.Edges {
		if e.To == g.End {
			t.Fatalf("edge %+v reaches the end node", e)
		}
	}
}
