package world

import "fmt"

// MaxEvents bounds the event log carried in every snapshot; older entries are
// dropped first.
const MaxEvents = 200

type Message struct {
	From      string `json:"from"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type EventKind string

const (
	EventMove        EventKind = "move"
	EventAttack      EventKind = "attack"
	EventTalk        EventKind = "talk"
	EventElimination EventKind = "elimination"
	EventFallback    EventKind = "fallback"
	EventAnomaly     EventKind = "anomaly"
	EventReconcile   EventKind = "reconcile"
	EventCompleted   EventKind = "completed"
)

// Event is a notable occurrence recorded in the match log for renderers.
type Event struct {
	Kind      EventKind `json:"type"`
	Turn      int       `json:"turn"`
	AgentID   string    `json:"agentId,omitempty"`
	TargetID  string    `json:"targetId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// GameState is the authoritative state of one match. Puppets keep roster
// order for the lifetime of the match.
type GameState struct {
	Puppets     []*Puppet   `json:"puppets"`
	TurnNumber  int         `json:"turnNumber"`
	Completed   bool        `json:"completed"`
	Winner      string      `json:"winner,omitempty"`
	Environment Environment `json:"environment"`
	Messages    []Message   `json:"messages"`
	Events      []Event     `json:"events"`
}

func NewGameState(env Environment) *GameState {
	if !env.Valid() {
		env = DefaultEnvironment()
	}
	return &GameState{
		Puppets:     make([]*Puppet, 0),
		Environment: env,
		Messages:    make([]Message, 0),
		Events:      make([]Event, 0),
	}
}

// AddPuppet appends a puppet to the roster, rejecting duplicate or empty ids.
func (s *GameState) AddPuppet(p Puppet) (*Puppet, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: puppet id is empty", ErrValidation)
	}
	if _, ok := s.Puppet(p.ID); ok {
		return nil, fmt.Errorf("%w: duplicate puppet id %q", ErrValidation, p.ID)
	}
	stored := p.Clone()
	s.Puppets = append(s.Puppets, &stored)
	return &stored, nil
}

func (s *GameState) Puppet(id string) (*Puppet, bool) {
	for _, p := range s.Puppets {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Living returns living puppets in roster order.
func (s *GameState) Living() []*Puppet {
	out := make([]*Puppet, 0, len(s.Puppets))
	for _, p := range s.Puppets {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

func (s *GameState) LivingCount() int {
	n := 0
	for _, p := range s.Puppets {
		if p.IsAlive {
			n++
		}
	}
	return n
}

func (s *GameState) AppendMessage(m Message) {
	s.Messages = append(s.Messages, m)
}

func (s *GameState) RecordEvent(e Event) {
	if e.Turn == 0 {
		e.Turn = s.TurnNumber
	}
	s.Events = append(s.Events, e)
	if overflow := len(s.Events) - MaxEvents; overflow > 0 {
		s.Events = append(s.Events[:0:0], s.Events[overflow:]...)
	}
}

// EvaluateCompletion marks the match completed once at most one puppet lives.
// Completion is sticky. It reports whether this call completed the match.
func (s *GameState) EvaluateCompletion(now int64) bool {
	if s.Completed {
		return false
	}
	living := s.Living()
	if len(living) > 1 {
		return false
	}
	s.Completed = true
	if len(living) == 1 {
		s.Winner = living[0].ID
	}
	s.RecordEvent(Event{Kind: EventCompleted, AgentID: s.Winner, Timestamp: now})
	return true
}

// Clone returns a deep copy safe to hand to encoders and other goroutines.
func (s *GameState) Clone() GameState {
	cloned := GameState{
		Puppets:     make([]*Puppet, len(s.Puppets)),
		TurnNumber:  s.TurnNumber,
		Completed:   s.Completed,
		Winner:      s.Winner,
		Environment: s.Environment,
		Messages:    append(make([]Message, 0, len(s.Messages)), s.Messages...),
		Events:      append(make([]Event, 0, len(s.Events)), s.Events...),
	}
	for i, p := range s.Puppets {
		copied := p.Clone()
		cloned.Puppets[i] = &copied
	}
	return cloned
}
