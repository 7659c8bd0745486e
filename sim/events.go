package sim

import "github.com/onemanifold/SMPST-sub003/cfg"

// EventType tags an emitted event.
type EventType string

const (
	// EventMessage is a message action: From sent Label to To.
	EventMessage EventType = "message"

	// EventChoice reports which option a branch node took.
	EventChoice EventType = "choice"

	// EventFork reports entry into a parallel region.
	EventFork EventType = "fork"

	// EventJoin reports that all branches of a parallel region
	// finished and the region was left.
	EventJoin EventType = "join"
)

// Event is one observable simulation event.  Exactly one event is
// emitted per successful Step.
type Event struct {
	Type EventType  `json:"type" yaml:"type"`
	Node cfg.NodeID `json:"node" yaml:"node"`

	// From, To, and Label are set for message events.  Label also
	// carries the selected option tag on choice events.
	From  string `json:"from,omitempty" yaml:"from,omitempty"`
	To    string `json:"to,omitempty" yaml:"to,omitempty"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// ParallelID is set on fork and join events.
	ParallelID int `json:"parallelId,omitempty" yaml:"parallelId,omitempty"`
}

// Trace is the append-only sequence of events emitted by successful
// steps, recorded when Config.RecordTrace is set.
type Trace struct {
	Events []Event `json:"events" yaml:"events"`
}

func (t *Trace) add(ev Event) {
	t.Events = append(t.Events, ev)
}
