package world

import "encoding/json"

// DefaultAvatarURL is assigned to puppets that arrive without an avatar.
const DefaultAvatarURL = "/images/default.png"

type StatKind string

const (
	StatStealth    StatKind = "stealth"
	StatCombat     StatKind = "combat"
	StatPerception StatKind = "perception"
	StatSpeed      StatKind = "speed"
	StatHealth     StatKind = "health"
)

// StatKinds lists every recognised stat in wire order.
var StatKinds = []StatKind{StatStealth, StatCombat, StatPerception, StatSpeed, StatHealth}

// Stats holds the recognised puppet attributes. The engine does not read them.
type Stats struct {
	Stealth    float64 `json:"stealth"`
	Combat     float64 `json:"combat"`
	Perception float64 `json:"perception"`
	Speed      float64 `json:"speed"`
	Health     float64 `json:"health,omitempty"`
}

// UnmarshalJSON accepts the renderer's "strength" as an alias for combat and
// ignores unrecognised keys.
func (s *Stats) UnmarshalJSON(data []byte) error {
	type plain Stats
	var aux struct {
		plain
		Strength *float64 `json:"strength"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Stats(aux.plain)
	if aux.Strength != nil && s.Combat == 0 {
		s.Combat = *aux.Strength
	}
	return nil
}

func (s Stats) Value(kind StatKind) (float64, bool) {
	switch kind {
	case StatStealth:
		return s.Stealth, true
	case StatCombat:
		return s.Combat, true
	case StatPerception:
		return s.Perception, true
	case StatSpeed:
		return s.Speed, true
	case StatHealth:
		return s.Health, true
	default:
		return 0, false
	}
}

type AvatarConfig struct {
	Material    string `json:"material"`
	Pattern     string `json:"pattern"`
	Eyes        string `json:"eyes"`
	Accessories string `json:"accessories"`
}

type Puppet struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Position    Vector  `json:"position"`
	IsAlive     bool    `json:"isAlive"`
	Target      string  `json:"target,omitempty"`
	LastAction  *Action `json:"lastAction,omitempty"`
	LastMessage string  `json:"lastMessage,omitempty"`
	AvatarURL   string  `json:"avatarUrl,omitempty"`
	Stats       *Stats  `json:"stats,omitempty"`
}

func (p Puppet) Clone() Puppet {
	cloned := p
	if p.LastAction != nil {
		action := p.LastAction.Clone()
		cloned.LastAction = &action
	}
	if p.Stats != nil {
		stats := *p.Stats
		cloned.Stats = &stats
	}
	return cloned
}
