package world

import "testing"

// newTestState builds a state with living puppets at the given positions,
// named after their ids.
func newTestState(t *testing.T, ids []string, positions []Vector) *GameState {
	t.Helper()
	state := NewGameState(DefaultEnvironment())
	for i, id := range ids {
		pos := Vector{}
		if i < len(positions) {
			pos = positions[i]
		}
		if _, err := state.AddPuppet(Puppet{ID: id, Name: id, Position: pos, IsAlive: true}); err != nil {
			t.Fatalf("add puppet %s: %v", id, err)
		}
	}
	return state
}

func mustPuppet(t *testing.T, state *GameState, id string) *Puppet {
	t.Helper()
	p, ok := state.Puppet(id)
	if !ok {
		t.Fatalf("expected puppet %s in roster", id)
	}
	return p
}
