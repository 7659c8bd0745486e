package tools

import (
	"encoding/json"
	"fmt"

	"github.com/onemanifold/SMPST-sub003/match"
	"github.com/onemanifold/SMPST-sub003/sim"
)

// Expectation is a pattern that some later event in a trace must
// match.  Patterns use the match package's syntax, so "?var" binds an
// event field and bindings carry over to later expectations.
type Expectation struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Pattern is matched against events rendered as JSON maps.
	Pattern interface{} `json:"pattern" yaml:"pattern"`
}

// Session is an ordered list of expectations to check against one
// recorded trace.
type Session struct {
	Doc    string        `json:"doc,omitempty" yaml:"doc,omitempty"`
	Expect []Expectation `json:"expect" yaml:"expect"`
}

// Check verifies that the trace's events match the session's
// expectations in order.  Events that match no pending expectation
// are skipped, so expectations describe a subsequence of the trace.
func (s *Session) Check(tr *sim.Trace) error {
	bs := make(match.Bindings)
	next := 0

	for i := range tr.Events {
		if next >= len(s.Expect) {
			break
		}
		fact, err := eventFact(&tr.Events[i])
		if err != nil {
			return err
		}
		pattern, err := match.Canonicalize(s.Expect[next].Pattern)
		if err != nil {
			return err
		}
		if acc, ok := match.Match(pattern, fact, bs); ok {
			bs = acc
			next++
		}
	}

	if next < len(s.Expect) {
		e := s.Expect[next]
		js, _ := json.Marshal(e.Pattern)
		if e.Doc != "" {
			return fmt.Errorf("expectation %d (%s) unmatched: %s", next, e.Doc, js)
		}
		return fmt.Errorf("expectation %d unmatched: %s", next, js)
	}

	return nil
}

// eventFact renders an event as a decoded JSON map so patterns can
// match it structurally.
func eventFact(ev *sim.Event) (interface{}, error) {
	js, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fact interface{}
	if err := json.Unmarshal(js, &fact); err != nil {
		return nil, err
	}
	return fact, nil
}
