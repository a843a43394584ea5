package world

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestReconcileInsertsUnknownPuppet(t *testing.T) {
	state := newTestState(t, []string{"a", "b"}, nil)
	var partial PartialState
	if err := json.Unmarshal([]byte(`{"players":[{"id":"ghost-42","position":{"x":12,"y":34}}]}`), &partial); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	result, err := Reconcile(state, partial, ReconcileAuthoritative)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reflect.DeepEqual(result.Inserted, []string{"ghost-42"}) {
		t.Fatalf("expected ghost-42 inserted, got %+v", result)
	}
	ghost := mustPuppet(t, state, "ghost-42")
	if ghost.Position != (Vector{X: 12, Y: 34}) || !ghost.IsAlive {
		t.Fatalf("unexpected ghost %+v", ghost)
	}
	if ghost.AvatarURL != DefaultAvatarURL || ghost.Name != "Player ghost-42" {
		t.Fatalf("expected defaults on inserted puppet, got %+v", ghost)
	}
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	state := newTestState(t, []string{"a", "b", "c"}, nil)
	AssignTargets(state)
	var partial PartialState
	payload := `{"puppets":[
		{"id":"a","name":"renamed","position":{"x":5,"y":6},"targetId":"c"},
		{"id":"b","isAlive":false},
		{"id":"a","position":{"x":7,"y":8}}
	]}`
	if err := json.Unmarshal([]byte(payload), &partial); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	result, err := Reconcile(state, partial, ReconcileAuthoritative)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(state.Puppets) != 3 {
		t.Fatalf("expected no inserts, got %d puppets", len(state.Puppets))
	}
	if !reflect.DeepEqual(result.Updated, []string{"a", "b"}) {
		t.Fatalf("expected a and b updated once each, got %v", result.Updated)
	}
	a := mustPuppet(t, state, "a")
	if a.Position != (Vector{X: 7, Y: 8}) || a.Target != "c" || a.Name != "a" {
		t.Fatalf("unexpected a %+v", a)
	}
	if mustPuppet(t, state, "b").IsAlive {
		t.Fatalf("expected b dead")
	}
	if !reflect.DeepEqual(result.Eliminated, []string{"b"}) {
		t.Fatalf("expected b reported eliminated, got %v", result.Eliminated)
	}
}

func TestReconcileNeverRevives(t *testing.T) {
	state := newTestState(t, []string{"a", "b"}, nil)
	mustPuppet(t, state, "b").IsAlive = false
	alive := true
	if _, err := Reconcile(state, PartialState{Puppets: []PuppetReport{{ID: "b", IsAlive: &alive}}}, ReconcileAuthoritative); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if mustPuppet(t, state, "b").IsAlive {
		t.Fatalf("expected dead puppet to stay dead")
	}
}

func TestReconcileRejectsInvalidEntries(t *testing.T) {
	state := newTestState(t, []string{"a"}, nil)
	pos := Vector{X: 1, Y: 1}
	partial := PartialState{
		Puppets:     []PuppetReport{{ID: ""}, {ID: "a", Position: &pos}},
		Environment: &Environment{Width: -1, Height: 10},
	}

	result, err := Reconcile(state, partial, ReconcileAuthoritative)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if result.Rejected != 2 {
		t.Fatalf("expected two rejections, got %d", result.Rejected)
	}
	if mustPuppet(t, state, "a").Position != pos {
		t.Fatalf("expected valid entry to apply despite rejections")
	}
	if state.Environment != DefaultEnvironment() {
		t.Fatalf("expected invalid environment to be ignored")
	}
}

func TestReconcileAdvisoryLeavesStateUntouched(t *testing.T) {
	state := newTestState(t, []string{"a"}, nil)
	pos := Vector{X: 9, Y: 9}
	result, err := Reconcile(state, PartialState{Puppets: []PuppetReport{{ID: "a", Position: &pos}, {ID: "new"}}}, ReconcileAdvisory)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Applied {
		t.Fatalf("expected advisory reconcile not to apply")
	}
	if len(state.Puppets) != 1 || mustPuppet(t, state, "a").Position != (Vector{}) {
		t.Fatalf("advisory reconcile mutated state")
	}
}

func TestReconcileRoundTripIsIdempotent(t *testing.T) {
	source := newTestState(t, []string{"a", "b", "c"}, []Vector{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}})
	AssignTargets(source)
	mustPuppet(t, source, "c").IsAlive = false

	data, err := json.Marshal(PartialFromState(source.Clone()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var partial PartialState
	if err := json.Unmarshal(data, &partial); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fresh := NewGameState(DefaultEnvironment())
	if _, err := Reconcile(fresh, partial, ReconcileAuthoritative); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	first := fresh.Clone()
	result, err := Reconcile(fresh, partial, ReconcileAuthoritative)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(result.Inserted) != 0 {
		t.Fatalf("expected no inserts on second pass, got %v", result.Inserted)
	}
	if !reflect.DeepEqual(first.Puppets, fresh.Clone().Puppets) {
		t.Fatalf("second reconcile drifted state")
	}
	for _, want := range source.Puppets {
		got := mustPuppet(t, fresh, want.ID)
		if got.Position != want.Position || got.IsAlive != want.IsAlive || got.Target != want.Target || got.Name != want.Name {
			t.Fatalf("field drift for %s: got %+v want %+v", want.ID, got, want)
		}
	}
}

func TestParseReconcileMode(t *testing.T) {
	if mode, ok := ParseReconcileMode("Advisory"); !ok || mode != ReconcileAdvisory {
		t.Fatalf("expected advisory, got %s", mode)
	}
	if mode, ok := ParseReconcileMode("bogus"); ok || mode != ReconcileAuthoritative {
		t.Fatalf("expected fallback to authoritative, got %s ok=%v", mode, ok)
	}
}
