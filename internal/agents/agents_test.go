package agents

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"puppet-arena/server/internal/world"
)

func testView(self world.Vector, others ...world.Perception) world.WorldView {
	return world.WorldView{
		Self:          world.Puppet{ID: "me", Name: "Me", Position: self, IsAlive: true, Target: "prey"},
		NearbyPuppets: others,
		Environment:   world.DefaultEnvironment(),
	}
}

func TestParseKindAliases(t *testing.T) {
	tests := map[string]Kind{
		"ai":       KindHunter,
		"Scripted": KindHunter,
		"human":    KindIdle,
		"player":   KindIdle,
		"random":   KindRandom,
		" lua ":    KindLua,
		"remote":   KindRemote,
	}
	for raw, want := range tests {
		got, err := ParseKind(raw)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %s, %v; want %s", raw, got, err, want)
		}
	}
	if _, err := ParseKind("gpt-overlord"); !errors.Is(err, world.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown kind, got %v", err)
	}
}

func TestFactoryBuildsEveryKind(t *testing.T) {
	factory := NewFactory(FactoryConfig{Seed: 3})
	configs := []world.PuppetConfig{
		{Type: "ai"},
		{Type: "random"},
		{Type: "human"},
		{Type: "lua", Script: `function decide(view) return {type = "move", dx = 0, dy = 0} end`},
		{Type: "remote", Endpoint: "http://127.0.0.1:9/decide"},
	}
	for _, cfg := range configs {
		agent, err := factory.New(cfg)
		if err != nil {
			t.Fatalf("factory %s: %v", cfg.Type, err)
		}
		if agent == nil {
			t.Fatalf("factory %s returned nil agent", cfg.Type)
		}
	}

	invalid := []world.PuppetConfig{
		{Type: "unknown"},
		{Type: "lua"},
		{Type: "lua", Script: `x = 1`},
		{Type: "remote", Endpoint: "ftp://example"},
	}
	for _, cfg := range invalid {
		if _, err := factory.New(cfg); !errors.Is(err, world.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", cfg, err)
		}
	}
}

func TestHunterAttacksInRange(t *testing.T) {
	hunter := NewHunter(HunterConfig{KillRange: 1, MaxMoveDistance: 3}, rand.New(rand.NewSource(1)))
	view := testView(world.Vector{X: 10, Y: 10}, world.Perception{ID: "prey", Position: world.Vector{X: 10.5, Y: 10}, IsAlive: true, IsTarget: true, DistanceToSelf: 0.5})

	action, err := hunter.GetAction(context.Background(), view)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if action.Type != world.ActionAttack || action.TargetID != "prey" || action.AgentID != "me" {
		t.Fatalf("expected attack on prey, got %+v", action)
	}
}

func TestHunterClosesDistance(t *testing.T) {
	hunter := NewHunter(HunterConfig{KillRange: 1, MaxMoveDistance: 3}, rand.New(rand.NewSource(1)))
	view := testView(world.Vector{X: 10, Y: 10},
		world.Perception{ID: "bystander", Position: world.Vector{X: 12, Y: 10}, IsAlive: true, DistanceToSelf: 2},
		world.Perception{ID: "prey", Position: world.Vector{X: 10, Y: 30}, IsAlive: true, IsTarget: true, DistanceToSelf: 20},
	)

	action, err := hunter.GetAction(context.Background(), view)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if action.Type != world.ActionMove || action.Delta == nil {
		t.Fatalf("expected a move, got %+v", action)
	}
	if *action.Delta != (world.Vector{X: 0, Y: 3}) {
		t.Fatalf("expected a full step toward the target, got %+v", *action.Delta)
	}
}

func TestHunterTauntsOnSchedule(t *testing.T) {
	hunter := NewHunter(HunterConfig{KillRange: 1, MaxMoveDistance: 3, ChatRange: 5, TauntEvery: 2}, rand.New(rand.NewSource(1)))
	view := testView(world.Vector{X: 10, Y: 10}, world.Perception{ID: "prey", Name: "Prey", Position: world.Vector{X: 13, Y: 10}, IsAlive: true, IsTarget: true, DistanceToSelf: 3})
	view.TurnNumber = 1

	action, err := hunter.GetAction(context.Background(), view)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if action.Type != world.ActionTalk || action.Validate() != nil {
		t.Fatalf("expected a taunt, got %+v", action)
	}
}

func TestRandomStaysWithinStep(t *testing.T) {
	agent := NewRandom(3, rand.New(rand.NewSource(9)))
	for i := 0; i < 50; i++ {
		action, err := agent.GetAction(context.Background(), testView(world.Vector{}))
		if err != nil {
			t.Fatalf("get action: %v", err)
		}
		if action.Delta.X < -3 || action.Delta.X > 3 || action.Delta.Y < -3 || action.Delta.Y > 3 {
			t.Fatalf("delta out of range: %+v", action.Delta)
		}
	}
}

func TestIdleStandsStill(t *testing.T) {
	action, err := Idle{}.GetAction(context.Background(), testView(world.Vector{X: 1, Y: 1}))
	if err != nil || action.Type != world.ActionMove || *action.Delta != (world.Vector{}) {
		t.Fatalf("expected zero move, got %+v err=%v", action, err)
	}
}

func TestLuaAgentDecides(t *testing.T) {
	script := `
seen = 0
function observe(view)
  seen = seen + 1
end
function decide(view)
  for _, p in ipairs(view.nearby) do
    if p.isTarget and p.distance <= 1 then
      return {type = "attack", target = p.id}
    end
  end
  if seen > 0 then
    return {type = "talk", message = "seen " .. seen}
  end
  return {type = "move", dx = 1, dy = -1}
end`
	agent, err := NewLuaAgent(script)
	if err != nil {
		t.Fatalf("new lua agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })

	far := testView(world.Vector{}, world.Perception{ID: "prey", IsTarget: true, DistanceToSelf: 8})
	action, err := agent.GetAction(context.Background(), far)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if action.Type != world.ActionMove || action.Delta == nil || *action.Delta != (world.Vector{X: 1, Y: -1}) {
		t.Fatalf("expected scripted move, got %+v", action)
	}

	near := testView(world.Vector{}, world.Perception{ID: "prey", IsTarget: true, DistanceToSelf: 0.5})
	action, err = agent.GetAction(context.Background(), near)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if action.Type != world.ActionAttack || action.TargetID != "prey" || action.AgentID != "me" {
		t.Fatalf("expected scripted attack, got %+v", action)
	}

	agent.UpdateView(far)
	action, err = agent.GetAction(context.Background(), far)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if action.Type != world.ActionTalk || action.Message != "seen 1" {
		t.Fatalf("expected observe hook to run, got %+v", action)
	}
}

func TestLuaAgentSandbox(t *testing.T) {
	agent, err := NewLuaAgent(`function decide(view) return {type = "move", dx = os and 1 or 0, dy = dofile and 1 or 0} end`)
	if err != nil {
		t.Fatalf("new lua agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })

	action, err := agent.GetAction(context.Background(), testView(world.Vector{}))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if *action.Delta != (world.Vector{}) {
		t.Fatalf("expected os and dofile to be unavailable, got %+v", action.Delta)
	}
}

func TestLuaAgentHonoursContext(t *testing.T) {
	agent, err := NewLuaAgent(`function decide(view) while true do end end`)
	if err != nil {
		t.Fatalf("new lua agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := agent.GetAction(ctx, testView(world.Vector{})); err == nil {
		t.Fatalf("expected runaway script to be interrupted")
	}
}

func TestLuaAgentObserveIsBounded(t *testing.T) {
	agent, err := NewLuaAgent(`
function observe(view) while true do end end
function decide(view) return {type = "talk", message = "still here"} end`)
	if err != nil {
		t.Fatalf("new lua agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })
	agent.observeTimeout = 50 * time.Millisecond

	returned := make(chan struct{})
	go func() {
		agent.UpdateView(testView(world.Vector{}))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected runaway observe to be interrupted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	action, err := agent.GetAction(ctx, testView(world.Vector{}))
	if err != nil {
		t.Fatalf("decide after interrupted observe: %v", err)
	}
	if action.Type != world.ActionTalk || action.Message != "still here" {
		t.Fatalf("expected decide to keep working, got %+v", action)
	}
}

func TestFactoryAppliesObserveTimeout(t *testing.T) {
	cfg := DefaultFactoryConfig()
	cfg.ObserveTimeout = 75 * time.Millisecond
	agent, err := NewFactory(cfg).New(world.PuppetConfig{
		Type:   "lua",
		Script: `function decide(view) return {type = "move", dx = 0, dy = 0} end`,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	lua, ok := agent.(*LuaAgent)
	if !ok {
		t.Fatalf("expected *LuaAgent, got %T", agent)
	}
	t.Cleanup(func() { lua.Close() })
	if lua.observeTimeout != 75*time.Millisecond {
		t.Fatalf("expected observe timeout from factory config, got %s", lua.observeTimeout)
	}
}

func TestLuaAgentRejectsNonTable(t *testing.T) {
	agent, err := NewLuaAgent(`function decide(view) return 42 end`)
	if err != nil {
		t.Fatalf("new lua agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })
	if _, err := agent.GetAction(context.Background(), testView(world.Vector{})); err == nil {
		t.Fatalf("expected non-table result to fail")
	}
}

func TestRemoteAgentPostsView(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var view world.WorldView
		if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
			t.Errorf("decode view: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"action":{"type":"talk","message":"hello from ` + view.Self.ID + `"}}`))
	}))
	t.Cleanup(srv.Close)

	agent, err := NewRemote(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	action, err := agent.GetAction(context.Background(), testView(world.Vector{}))
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if action.Type != world.ActionTalk || action.Message != "hello from me" || action.AgentID != "me" {
		t.Fatalf("unexpected action %+v", action)
	}
}

func TestRemoteAgentReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	agent, err := NewRemote(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	if _, err := agent.GetAction(context.Background(), testView(world.Vector{})); !errors.Is(err, world.ErrAgentFailure) {
		t.Fatalf("expected ErrAgentFailure, got %v", err)
	}
}
