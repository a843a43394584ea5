package world

import (
	"fmt"
	"math"
)

// DefaultMessageHistory is the number of recent messages exposed in a view.
const DefaultMessageHistory = 10

// Perception is what one puppet can observe about another living puppet.
type Perception struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Position       Vector  `json:"position"`
	IsAlive        bool    `json:"isAlive"`
	IsTarget       bool    `json:"isTarget"`
	LastMessage    string  `json:"lastMessage,omitempty"`
	DistanceToSelf float64 `json:"distanceToSelf"`
}

// WorldView is the puppet-relative projection handed to an agent.
type WorldView struct {
	Self           Puppet       `json:"self"`
	NearbyPuppets  []Perception `json:"nearbyPuppets"`
	RecentMessages []Message    `json:"recentMessages"`
	Environment    Environment  `json:"environment"`
	TurnNumber     int          `json:"turnNumber"`
}

type ViewOptions struct {
	// PerceptionRadius culls puppets farther away than the radius. Zero or
	// less means everyone is visible.
	PerceptionRadius float64
	MessageHistory   int
}

func DefaultViewOptions() ViewOptions {
	return ViewOptions{MessageHistory: DefaultMessageHistory}
}

// BuildView projects state for the puppet with the given id. It does not
// mutate state and the result shares no memory with it.
func BuildView(state *GameState, id string, opts ViewOptions) (WorldView, error) {
	if state == nil {
		return WorldView{}, fmt.Errorf("%w: puppet %q", ErrNotFound, id)
	}
	self, ok := state.Puppet(id)
	if !ok {
		return WorldView{}, fmt.Errorf("%w: puppet %q", ErrNotFound, id)
	}

	radius := opts.PerceptionRadius
	if radius <= 0 || math.IsNaN(radius) {
		radius = math.Inf(1)
	}
	nearby := make([]Perception, 0, len(state.Puppets))
	for _, other := range state.Puppets {
		if other.ID == self.ID || !other.IsAlive {
			continue
		}
		distance := Distance(self.Position, other.Position)
		if distance > radius {
			continue
		}
		nearby = append(nearby, Perception{
			ID:             other.ID,
			Name:           other.Name,
			Position:       other.Position,
			IsAlive:        other.IsAlive,
			IsTarget:       self.Target != "" && self.Target == other.ID,
			LastMessage:    other.LastMessage,
			DistanceToSelf: distance,
		})
	}

	history := opts.MessageHistory
	if history <= 0 {
		history = DefaultMessageHistory
	}
	start := len(state.Messages) - history
	if start < 0 {
		start = 0
	}
	messages := append(make([]Message, 0, len(state.Messages)-start), state.Messages[start:]...)

	return WorldView{
		Self:           self.Clone(),
		NearbyPuppets:  nearby,
		RecentMessages: messages,
		Environment:    state.Environment,
		TurnNumber:     state.TurnNumber,
	}, nil
}

// Target returns the perception of the viewer's target when it is visible.
func (v WorldView) Target() (Perception, bool) {
	for _, p := range v.NearbyPuppets {
		if p.IsTarget {
			return p, true
		}
	}
	return Perception{}, false
}

// Nearest returns the closest visible puppet.
func (v WorldView) Nearest() (Perception, bool) {
	var best Perception
	found := false
	for _, p := range v.NearbyPuppets {
		if !found || p.DistanceToSelf < best.DistanceToSelf {
			best = p
			found = true
		}
	}
	return best, found
}
