package verify

import (
	"reflect"
	"testing"

	"github.com/onemanifold/SMPST-sub003/cfg"
	"github.com/onemanifold/SMPST-sub003/parser"
)

func graph(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	p, err := parser.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	g, err := cfg.Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func codes(r *Report) []string {
	var acc []string
	for _, d := range r.Diagnostics {
		acc = append(acc, d.Code)
	}
	return acc
}

func wantValid(t *testing.T, src string) {
	t.Helper()
	r := Verify(graph(t, src))
	if !r.Valid || len(r.Diagnostics) != 0 {
		t.Fatalf("expected a clean report, got %+v", r.Diagnostics)
	}
}

func wantCode(t *testing.T, src, code string) Diagnostic {
	t.Helper()
	r := Verify(graph(t, src))
	if r.Valid {
		t.Fatalf("expected %s, got a clean report", code)
	}
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return d
		}
	}
	t.Fatalf("expected %s among %v", code, codes(r))
	return Diagnostic{}
}

func TestVerifyCleanProtocol(t *testing.T) {
	wantValid(t, `protocol RR(role Client, role Server) {
		Client -> Server: Request();
		Server -> Client: Response();
	}`)
}

func TestVerifyChoiceSubject(t *testing.T) {
	wantValid(t, `protocol P(role A, role B) {
		choice at A { A -> B: Left(); } or { A -> B: Right(); }
	}`)

	// The second option opens with a message from B, not from the
	// deciding role.
	d := wantCode(t, `protocol P(role A, role B) {
		choice at A { A -> B: Left(); } or { B -> A: Right(); }
	}`, CodeChoiceSubject)
	if d.NodeID == cfg.NoNode {
		t.Fatalf("diagnostic %+v carries no node", d)
	}
}

func TestVerifyChoiceSubjectEmptyOption(t *testing.T) {
	wantCode(t, `protocol P(role A, role B) {
		choice at A { A -> B: Go(); } or { rec L { } }
	}`, CodeChoiceSubject)
}

func TestVerifyChoiceKnowledge(t *testing.T) {
	// B hears a distinct label first in each option.
	wantValid(t, `protocol P(role A, role B) {
		choice at A { A -> B: Left(); } or { A -> B: Right(); }
	}`)

	// Both options open with the same label at B.
	d := wantCode(t, `protocol P(role A, role B, role C) {
		choice at A {
			A -> B: Go();
			B -> C: Fwd1();
		} or {
			A -> B: Go();
			B -> C: Fwd2();
		}
	}`, CodeChoiceKnowledge)
	if d.Message == "" {
		t.Fatal("empty diagnostic message")
	}
}

func TestVerifyChoiceKnowledgeSingleOptionRole(t *testing.T) {
	// C only appears in one option, so it needs no distinguishing
	// label.
	wantValid(t, `protocol P(role A, role B, role C) {
		choice at A {
			A -> B: Left();
			A -> C: Note();
		} or {
			A -> B: Right();
		}
		A -> C: Bye();
	}`)
}

func TestVerifyParallelRaces(t *testing.T) {
	wantValid(t, `protocol P(role A, role B, role C, role D) {
		par { A -> B: M1(); } and { C -> D: M2(); }
	}`)

	d := wantCode(t, `protocol P(role A, role B, role C) {
		par { A -> B: M1(); } and { A -> C: M2(); }
	}`, CodeParallelRaces)
	if d.Message == "" {
		t.Fatal("empty diagnostic message")
	}
}

func TestVerifyParallelRacesBoundedByJoin(t *testing.T) {
	// A is busy in one branch and again after the join; that is
	// sequencing, not a race.
	wantValid(t, `protocol P(role A, role B, role C, role D) {
		par { A -> B: M1(); } and { C -> D: M2(); }
		A -> B: After();
	}`)
}

func TestVerifyRecursionGuards(t *testing.T) {
	wantValid(t, `protocol Loop(role A, role B) {
		rec L {
			A -> B: Tick();
			continue L;
		}
	}`)

	d := wantCode(t, `protocol P(role A, role B) {
		rec L { continue L; }
	}`, CodeUnguardedRecursion)
	if d.NodeID == cfg.NoNode {
		t.Fatalf("diagnostic %+v carries no node", d)
	}
}

func TestVerifyRecursionGuardThroughChoice(t *testing.T) {
	// One option loops back without a message.
	wantCode(t, `protocol P(role A, role B) {
		rec L {
			choice at A { A -> B: Go(); continue L; } or { continue L; }
		}
	}`, CodeUnguardedRecursion)
}

func TestVerifyUnusedRole(t *testing.T) {
	d := wantCode(t, `protocol P(role A, role B, role C) {
		A -> B: M();
	}`, CodeUnusedRole)
	if d.NodeID != cfg.NoNode {
		t.Fatalf("diagnostic %+v names a node", d)
	}
}

func TestVerifyAccumulates(t *testing.T) {
	r := Verify(graph(t, `protocol P(role A, role B, role C) {
		choice at A { A -> B: Go(); } or { B -> A: Stop(); }
		rec L { continue L; }
	}`))
	if r.Valid {
		t.Fatal("expected violations")
	}

	found := map[string]bool{}
	for _, d := range r.Diagnostics {
		found[d.Code] = true
	}
	for _, code := range []string{CodeChoiceSubject, CodeUnguardedRecursion, CodeUnusedRole} {
		if !found[code] {
			t.Fatalf("missing %s in %v", code, codes(r))
		}
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	src := `protocol P(role A, role B, role C) {
		par { A -> B: M1(); } and { A -> C: M2(); }
		choice at A { A -> B: Go(); } or { C -> A: Stop(); }
	}`

	one := Verify(graph(t, src))
	two := Verify(graph(t, src))
	if !reflect.DeepEqual(one, two) {
		t.Fatalf("reports differ: %+v vs %+v", one, two)
	}
}
