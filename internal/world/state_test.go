package world

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAddPuppetRejectsDuplicates(t *testing.T) {
	state := newTestState(t, []string{"a"}, nil)
	if _, err := state.AddPuppet(Puppet{ID: "a", IsAlive: true}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
	if _, err := state.AddPuppet(Puppet{IsAlive: true}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty id to be rejected, got %v", err)
	}
	if len(state.Puppets) != 1 {
		t.Fatalf("expected roster to stay at one puppet, got %d", len(state.Puppets))
	}
}

func TestEvaluateCompletionIsSticky(t *testing.T) {
	state := newTestState(t, []string{"a", "b"}, nil)
	if state.EvaluateCompletion(1) {
		t.Fatalf("expected match with two living puppets to continue")
	}
	mustPuppet(t, state, "b").IsAlive = false
	if !state.EvaluateCompletion(2) {
		t.Fatalf("expected completion with one living puppet")
	}
	if !state.Completed || state.Winner != "a" {
		t.Fatalf("expected a to win, got completed=%v winner=%q", state.Completed, state.Winner)
	}
	if state.EvaluateCompletion(3) {
		t.Fatalf("expected completion to be reported once")
	}
	if !state.Completed {
		t.Fatalf("completion reverted")
	}
}

func TestRecordEventCapsLog(t *testing.T) {
	state := NewGameState(DefaultEnvironment())
	for i := 0; i < MaxEvents+25; i++ {
		state.RecordEvent(Event{Kind: EventFallback, Turn: i + 1})
	}
	if len(state.Events) != MaxEvents {
		t.Fatalf("expected %d events, got %d", MaxEvents, len(state.Events))
	}
	if state.Events[0].Turn != 26 {
		t.Fatalf("expected oldest events to be dropped, first turn %d", state.Events[0].Turn)
	}
}

func TestCloneIsDeep(t *testing.T) {
	state := newTestState(t, []string{"a"}, nil)
	action := Move("a", 1, 1)
	p := mustPuppet(t, state, "a")
	p.LastAction = &action
	p.Stats = &Stats{Combat: 3}

	cloned := state.Clone()
	cloned.Puppets[0].Position.X = 42
	cloned.Puppets[0].LastAction.Delta.X = 42
	cloned.Puppets[0].Stats.Combat = 42

	if p.Position.X != 0 || p.LastAction.Delta.X != 1 || p.Stats.Combat != 3 {
		t.Fatalf("clone shares memory with state: %+v", p)
	}
}

func TestStatsAcceptStrengthAlias(t *testing.T) {
	var stats Stats
	if err := json.Unmarshal([]byte(`{"stealth":2,"strength":7,"speed":4,"charisma":9}`), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Combat != 7 || stats.Stealth != 2 || stats.Speed != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if v, ok := stats.Value(StatCombat); !ok || v != 7 {
		t.Fatalf("expected combat value 7, got %v", v)
	}
}

func TestSpawnRingStaysInBounds(t *testing.T) {
	env := Environment{Width: 80, Height: 40}
	positions := SpawnRing(env, 6)
	if len(positions) != 6 {
		t.Fatalf("expected 6 positions, got %d", len(positions))
	}
	for i, pos := range positions {
		if !env.Contains(pos) {
			t.Fatalf("position %d out of bounds: %+v", i, pos)
		}
		if d := Distance(pos, env.Center()); d < 15.99 || d > 16.01 {
			t.Fatalf("expected radius 16, got %v", d)
		}
	}
}
