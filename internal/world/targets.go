package world

// AssignTargets points every living puppet at the next living puppet in roster
// order, wrapping around. With one or no living puppets nothing changes. It
// returns the number of puppets assigned.
func AssignTargets(state *GameState) int {
	if state == nil {
		return 0
	}
	living := state.Living()
	n := len(living)
	if n <= 1 {
		return 0
	}
	for i, p := range living {
		p.Target = living[(i+1)%n].ID
	}
	return n
}

// HuntersOf returns the living puppets whose target is id, in roster order.
func HuntersOf(state *GameState, id string) []*Puppet {
	var out []*Puppet
	for _, p := range state.Puppets {
		if p.IsAlive && p.Target == id && p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
