package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onemanifold/SMPST-sub003/sim"
)

const rr = `protocol RR(role Client, role Server) {
	Client -> Server: Request();
	Server -> Client: Response();
}`

func TestServiceParse(t *testing.T) {
	s := NewService(nil)

	resp := s.Handle(context.Background(), &Request{Op: "parse", Id: "1", Source: rr})
	if !resp.Success || resp.Protocol == nil || resp.Protocol.Name != "RR" {
		t.Fatalf("response %+v", resp)
	}
	if resp.Id != "1" {
		t.Fatalf("id %q not echoed", resp.Id)
	}

	resp = s.Handle(context.Background(), &Request{Op: "parse", Source: "junk"})
	if resp.Success || resp.Error == "" {
		t.Fatalf("response %+v", resp)
	}
}

func TestServiceCompileAndVerify(t *testing.T) {
	s := NewService(nil)

	resp := s.Handle(context.Background(), &Request{Op: "compile", Source: rr})
	if !resp.Success || resp.Graph == nil || len(resp.Graph.Nodes) != 3 {
		t.Fatalf("response %+v", resp)
	}

	resp = s.Handle(context.Background(), &Request{Op: "verify", Source: rr})
	if !resp.Success || resp.Report == nil || !resp.Report.Valid {
		t.Fatalf("response %+v", resp)
	}

	resp = s.Handle(context.Background(), &Request{
		Op:     "verify",
		Source: `protocol P(role A, role B, role C) { A -> B: M(); }`,
	})
	if !resp.Success || resp.Report.Valid {
		t.Fatalf("response %+v", resp)
	}
}

func TestServiceSessionLifecycle(t *testing.T) {
	s := NewService(nil)
	ctx := context.Background()

	resp := s.Handle(ctx, &Request{Op: "create", Source: rr, Trace: true})
	if !resp.Success || resp.Session == "" || resp.State == nil {
		t.Fatalf("response %+v", resp)
	}
	id := resp.Session

	resp = s.Handle(ctx, &Request{Op: "step", Session: id})
	if !resp.Success || resp.Event == nil {
		t.Fatalf("response %+v", resp)
	}
	if resp.Event.Type != sim.EventMessage || resp.Event.Label != "Request" {
		t.Fatalf("event %+v", resp.Event)
	}

	resp = s.Handle(ctx, &Request{Op: "step", Session: id})
	if !resp.Success || !resp.State.Completed {
		t.Fatalf("response %+v", resp)
	}

	// A step past completion fails softly.
	resp = s.Handle(ctx, &Request{Op: "step", Session: id})
	if resp.Success || resp.Error == "" {
		t.Fatalf("response %+v", resp)
	}

	resp = s.Handle(ctx, &Request{Op: "trace", Session: id})
	if !resp.Success || len(resp.Trace.Events) != 2 {
		t.Fatalf("response %+v", resp)
	}

	resp = s.Handle(ctx, &Request{Op: "sessions"})
	if !resp.Success || len(resp.Sessions) != 1 || resp.Sessions[0] != id {
		t.Fatalf("response %+v", resp)
	}
}

func TestServiceUnknownSessionAndOp(t *testing.T) {
	s := NewService(nil)
	ctx := context.Background()

	resp := s.Handle(ctx, &Request{Op: "state", Session: "run-99"})
	if resp.Success || !strings.Contains(resp.Error, "run-99") {
		t.Fatalf("response %+v", resp)
	}

	resp = s.Handle(ctx, &Request{Op: "frobnicate"})
	if resp.Success || !strings.Contains(resp.Error, "frobnicate") {
		t.Fatalf("response %+v", resp)
	}
}

func TestServiceBadScheduler(t *testing.T) {
	s := NewService(nil)
	resp := s.Handle(context.Background(), &Request{
		Op: "create", Source: rr, Scheduler: "random",
	})
	if resp.Success || !strings.Contains(resp.Error, "random") {
		t.Fatalf("response %+v", resp)
	}
}

func TestServiceSavesCompletedTraces(t *testing.T) {
	store, err := OpenTraceStore(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s := NewService(store)
	ctx := context.Background()

	resp := s.Handle(ctx, &Request{Op: "create", Source: rr, Trace: true})
	id := resp.Session
	s.Handle(ctx, &Request{Op: "step", Session: id})
	s.Handle(ctx, &Request{Op: "step", Session: id})

	rec, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Protocol != "RR" || len(rec.Trace.Events) != 2 {
		t.Fatalf("stored trace %+v", rec)
	}
}

func TestTraceStore(t *testing.T) {
	store, err := OpenTraceStore(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	tr := &sim.Trace{Events: []sim.Event{{Type: sim.EventMessage, Label: "Request"}}}
	if err := store.Save("run-1", "RR", tr); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("run-2", "RR", tr); err != nil {
		t.Fatal(err)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids %v", ids)
	}

	rec, err := store.Get("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Session != "run-1" || rec.Trace.Events[0].Label != "Request" {
		t.Fatalf("record %+v", rec)
	}

	if rec, err := store.Get("run-9"); err != nil || rec != nil {
		t.Fatalf("missing record: %+v, %v", rec, err)
	}

	// Everything saved above is older than a future cutoff.
	n, err := store.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("pruned %d", n)
	}
	ids, _ = store.List()
	if len(ids) != 0 {
		t.Fatalf("ids %v after prune", ids)
	}
}
