package world

import (
	"fmt"
	"testing"
)

func TestAssignTargetsFormsSingleCycle(t *testing.T) {
	for n := 2; n <= 9; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("p%d", i)
			}
			state := newTestState(t, ids, nil)

			if got := AssignTargets(state); got != n {
				t.Fatalf("expected %d assignments, got %d", n, got)
			}

			seen := make(map[string]bool, n)
			current := ids[0]
			for step := 0; step < n; step++ {
				if seen[current] {
					t.Fatalf("cycle closed early at %s after %d steps", current, step)
				}
				seen[current] = true
				p := mustPuppet(t, state, current)
				if p.Target == p.ID {
					t.Fatalf("puppet %s targets itself", p.ID)
				}
				current = p.Target
			}
			if current != ids[0] {
				t.Fatalf("expected cycle to return to %s, ended at %s", ids[0], current)
			}
			if len(seen) != n {
				t.Fatalf("expected cycle to cover %d puppets, covered %d", n, len(seen))
			}
		})
	}
}

func TestAssignTargetsSkipsDeadAndIsIdempotent(t *testing.T) {
	state := newTestState(t, []string{"a", "b", "c", "d"}, nil)
	mustPuppet(t, state, "c").IsAlive = false

	AssignTargets(state)
	first := make(map[string]string)
	for _, p := range state.Puppets {
		first[p.ID] = p.Target
	}
	AssignTargets(state)

	want := map[string]string{"a": "b", "b": "d", "d": "a"}
	for id, target := range want {
		if got := mustPuppet(t, state, id).Target; got != target {
			t.Fatalf("expected %s to target %s, got %s", id, target, got)
		}
		if first[id] != target {
			t.Fatalf("expected first pass to match second for %s", id)
		}
	}
	if got := mustPuppet(t, state, "c").Target; got != "" {
		t.Fatalf("expected dead puppet to keep its empty target, got %q", got)
	}
}

func TestAssignTargetsLeavesLoneSurvivorUntouched(t *testing.T) {
	state := newTestState(t, []string{"a", "b"}, nil)
	mustPuppet(t, state, "a").Target = "b"
	mustPuppet(t, state, "b").IsAlive = false

	if got := AssignTargets(state); got != 0 {
		t.Fatalf("expected no assignment with one living puppet, got %d", got)
	}
	if got := mustPuppet(t, state, "a").Target; got != "b" {
		t.Fatalf("expected existing target to be retained, got %q", got)
	}
}

func TestRepairChainHandsOverVictimTarget(t *testing.T) {
	state := newTestState(t, []string{"a", "b", "c"}, nil)
	AssignTargets(state)
	mustPuppet(t, state, "b").IsAlive = false

	heirs, next := RepairChain(state, "b")
	if len(heirs) != 1 || heirs[0] != "a" {
		t.Fatalf("expected a to inherit, got %v", heirs)
	}
	if next != "c" {
		t.Fatalf("expected inherited target c, got %q", next)
	}
	if got := mustPuppet(t, state, "c").Target; got != "a" {
		t.Fatalf("expected c unaffected, got %q", got)
	}
}

func TestRepairChainClearsSelfTarget(t *testing.T) {
	state := newTestState(t, []string{"a", "b"}, nil)
	AssignTargets(state)
	mustPuppet(t, state, "b").IsAlive = false

	RepairChain(state, "b")
	if got := mustPuppet(t, state, "a").Target; got != "" {
		t.Fatalf("expected survivor to have no target, got %q", got)
	}
}
