package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/onemanifold/SMPST-sub003/cfg"
	"github.com/onemanifold/SMPST-sub003/parser"
	"github.com/onemanifold/SMPST-sub003/sim"
	"github.com/onemanifold/SMPST-sub003/verify"
)

// Request is one operation submitted by an editor client over any
// coupling (WebSocket or MQTT).
type Request struct {
	Op string `json:"op"`

	// Id is echoed back so clients can correlate replies.
	Id string `json:"id,omitempty"`

	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`

	Session   string `json:"session,omitempty"`
	Choice    string `json:"choice,omitempty"`
	Trace     bool   `json:"trace,omitempty"`
	Scheduler string `json:"scheduler,omitempty"`
	MaxLoop   int    `json:"maxLoop,omitempty"`
}

// Response is the reply envelope.  Step failures are reported with
// Success false and the Error string; the transport never sees a Go
// error for those.
type Response struct {
	Op      string `json:"op"`
	Id      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Protocol *parser.Protocol `json:"protocol,omitempty"`
	Graph    *cfg.Graph       `json:"graph,omitempty"`
	Report   *verify.Report   `json:"report,omitempty"`

	Session  string     `json:"session,omitempty"`
	State    *sim.State `json:"state,omitempty"`
	Event    *sim.Event `json:"event,omitempty"`
	Trace    *sim.Trace `json:"trace,omitempty"`
	Sessions []string   `json:"sessions,omitempty"`
	Source   string     `json:"source,omitempty"`
}

type session struct {
	id    string
	graph *cfg.Graph
	sim   *sim.Simulator
}

// Service owns the simulation sessions and handles requests from all
// couplings.  Sessions are exclusive to their creator by convention;
// the registry itself is safe for concurrent handlers.
type Service struct {
	sync.RWMutex

	sessions map[string]*session
	nextId   int

	store *TraceStore
}

func NewService(store *TraceStore) *Service {
	return &Service{
		sessions: make(map[string]*session),
		store:    store,
	}
}

func (s *Service) fail(req *Request, err error) *Response {
	return &Response{Op: req.Op, Id: req.Id, Error: err.Error()}
}

// Handle processes one request.
func (s *Service) Handle(ctx context.Context, req *Request) *Response {
	switch req.Op {
	case "parse":
		p, err := parser.Parse(req.Source)
		if err != nil {
			return s.fail(req, err)
		}
		return &Response{Op: req.Op, Id: req.Id, Success: true, Protocol: p}

	case "compile":
		g, err := s.compile(req.Source)
		if err != nil {
			return s.fail(req, err)
		}
		return &Response{Op: req.Op, Id: req.Id, Success: true, Graph: g}

	case "verify":
		g, err := s.compile(req.Source)
		if err != nil {
			return s.fail(req, err)
		}
		report := verify.Verify(g)
		return &Response{Op: req.Op, Id: req.Id, Success: true, Report: report}

	case "create":
		g, err := s.compile(req.Source)
		if err != nil {
			return s.fail(req, err)
		}
		conf := sim.Config{RecordTrace: req.Trace, MaxLoop: req.MaxLoop}
		switch req.Scheduler {
		case "", "first":
		case "rr":
			conf.Scheduler = sim.RoundRobin
		default:
			return s.fail(req, fmt.Errorf("unknown scheduler %q", req.Scheduler))
		}

		s.Lock()
		s.nextId++
		sess := &session{
			id:    fmt.Sprintf("run-%d", s.nextId),
			graph: g,
			sim:   sim.New(g, conf),
		}
		s.sessions[sess.id] = sess
		s.Unlock()

		return &Response{
			Op: req.Op, Id: req.Id, Success: true,
			Session: sess.id,
			State:   sess.sim.GetState(),
		}

	case "step":
		sess, err := s.session(req.Session)
		if err != nil {
			return s.fail(req, err)
		}
		ev, err := sess.sim.Step(req.Choice)
		if err != nil {
			return s.fail(req, err)
		}
		if sess.sim.IsComplete() && s.store != nil {
			if err := s.store.Save(sess.id, sess.graph.Name, sess.sim.Trace()); err != nil {
				log.Printf("trace store save %s: %v", sess.id, err)
			}
		}
		return &Response{
			Op: req.Op, Id: req.Id, Success: true,
			Session: sess.id,
			Event:   ev,
			State:   sess.sim.GetState(),
		}

	case "state":
		sess, err := s.session(req.Session)
		if err != nil {
			return s.fail(req, err)
		}
		return &Response{
			Op: req.Op, Id: req.Id, Success: true,
			Session: sess.id,
			State:   sess.sim.GetState(),
		}

	case "trace":
		sess, err := s.session(req.Session)
		if err != nil {
			return s.fail(req, err)
		}
		return &Response{
			Op: req.Op, Id: req.Id, Success: true,
			Session: sess.id,
			Trace:   sess.sim.Trace(),
		}

	case "sessions":
		s.RLock()
		ids := make([]string, 0, len(s.sessions))
		for id := range s.sessions {
			ids = append(ids, id)
		}
		s.RUnlock()
		sort.Strings(ids)
		return &Response{Op: req.Op, Id: req.Id, Success: true, Sessions: ids}

	case "load":
		src, err := fetch(ctx, req.URL)
		if err != nil {
			return s.fail(req, err)
		}
		return &Response{Op: req.Op, Id: req.Id, Success: true, Source: src}

	default:
		return s.fail(req, fmt.Errorf("unknown op %q", req.Op))
	}
}

func (s *Service) compile(src string) (*cfg.Graph, error) {
	p, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return cfg.Compile(p)
}

func (s *Service) session(id string) (*session, error) {
	s.RLock()
	sess, have := s.sessions[id]
	s.RUnlock()
	if !have {
		return nil, fmt.Errorf("no session %q", id)
	}
	return sess, nil
}
