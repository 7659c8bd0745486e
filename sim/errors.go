package sim

// These errors are step-local: a failed Step leaves the simulator
// state exactly as it was, so the caller can retry.

import (
	"errors"
	"fmt"

	"github.com/onemanifold/SMPST-sub003/cfg"
)

// ErrCompleted occurs when Step is called after the simulation has
// reached the end node.
var ErrCompleted = errors.New("simulation already completed")

// ErrLimited occurs when Run's step limit interrupts an incomplete
// simulation.
var ErrLimited = errors.New("step limit reached")

// BadChoice occurs when the choice given to Step matches none of the
// labels available at the current branch node.
type BadChoice struct {
	Label string
	Have  []string
}

func (e *BadChoice) Error() string {
	return fmt.Sprintf("no choice labeled %q (have %v)", e.Label, e.Have)
}

// NotEligible occurs when the current node cannot be stepped.  Should
// not happen for graphs produced by cfg.Compile.
type NotEligible struct {
	Node cfg.NodeID
	Type cfg.NodeType
}

func (e *NotEligible) Error() string {
	return fmt.Sprintf("node %d (%s) is not eligible for stepping", e.Node, e.Type)
}

// SilentLoop occurs when a step would traverse a recursion cycle that
// contains no message action, which would otherwise never terminate.
// The verifier's guardedness check flags such loops statically.
type SilentLoop struct {
	Label string
}

func (e *SilentLoop) Error() string {
	return fmt.Sprintf("recursion %q loops without any message", e.Label)
}

// LoopLimit occurs when Config.MaxLoop is set and a recursion label
// would be traversed more than that many times.
type LoopLimit struct {
	Label string
	Limit int
}

func (e *LoopLimit) Error() string {
	return fmt.Sprintf("recursion %q exceeded the loop limit %d", e.Label, e.Limit)
}
