package parser

// The interaction tree is a closed set of tagged variants.  Every
// consumer (the CFG builder in particular) switches exhaustively over
// these types; adding a case here should break those switches.

// Protocol is a parsed protocol declaration.
type Protocol struct {
	Name string `json:"name" yaml:"name"`

	// Global records the 'global' modifier.  It has no effect on
	// the interaction tree.
	Global bool `json:"global,omitempty" yaml:"global,omitempty"`

	// Doc is the run of '//' comments immediately above the
	// declaration, if any.  Treated as Markdown by the tools.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Roles in declaration order.  Names are unique.
	Roles []string `json:"roles" yaml:"roles"`

	Body Interaction `json:"body" yaml:"body"`

	Pos Pos `json:"pos" yaml:"pos"`
}

// Interaction is the marker interface for interaction-tree nodes.
type Interaction interface {
	interaction()
	Position() Pos
}

// Message is a single point-to-point message action.
type Message struct {
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Label   string `json:"label" yaml:"label"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`
	Pos     Pos    `json:"pos" yaml:"pos"`
}

// Sequence is an ordered list of interactions.
type Sequence struct {
	Items []Interaction `json:"items" yaml:"items"`
	Pos   Pos           `json:"pos" yaml:"pos"`
}

// Choice is an exclusive alternative decided by the At role.
type Choice struct {
	At      string        `json:"at" yaml:"at"`
	Options []Interaction `json:"options" yaml:"options"`
	Pos     Pos           `json:"pos" yaml:"pos"`
}

// Parallel is a concurrent composition with no ordering constraint
// between its branches.
type Parallel struct {
	Branches []Interaction `json:"branches" yaml:"branches"`
	Pos      Pos           `json:"pos" yaml:"pos"`
}

// Recursion declares a loop entry point named Label.
type Recursion struct {
	Label string      `json:"label" yaml:"label"`
	Body  Interaction `json:"body" yaml:"body"`
	Pos   Pos         `json:"pos" yaml:"pos"`
}

// Continue jumps back to the lexically enclosing Recursion with the
// matching label.
type Continue struct {
	Label string `json:"label" yaml:"label"`
	Pos   Pos    `json:"pos" yaml:"pos"`
}

func (*Message) interaction()   {}
func (*Sequence) interaction()  {}
func (*Choice) interaction()    {}
func (*Parallel) interaction()  {}
func (*Recursion) interaction() {}
func (*Continue) interaction()  {}

func (m *Message) Position() Pos   { return m.Pos }
func (s *Sequence) Position() Pos  { return s.Pos }
func (c *Choice) Position() Pos    { return c.Pos }
func (p *Parallel) Position() Pos  { return p.Pos }
func (r *Recursion) Position() Pos { return r.Pos }
func (c *Continue) Position() Pos  { return c.Pos }
