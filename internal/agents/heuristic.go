package agents

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"puppet-arena/server/internal/world"
)

type HunterConfig struct {
	KillRange       float64
	MaxMoveDistance float64
	ChatRange       float64
	// TauntEvery makes the hunter talk instead of closing in every Nth turn
	// while its target is within chat range. Zero disables taunting.
	TauntEvery int
}

var taunts = []string{
	"I can see you, %s.",
	"Nowhere left to hide, %s.",
	"Your strings are fraying, %s.",
	"Stay still, %s. This will be quick.",
}

// Hunter chases its assigned target and attacks once it is within kill range.
// With no visible target it closes on the nearest puppet.
type Hunter struct {
	cfg HunterConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewHunter(cfg HunterConfig, rng *rand.Rand) *Hunter {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Hunter{cfg: cfg, rng: rng}
}

func (h *Hunter) GetAction(ctx context.Context, view world.WorldView) (world.Action, error) {
	if err := ctx.Err(); err != nil {
		return world.Action{}, err
	}
	self := view.Self.ID
	prey, ok := view.Target()
	if !ok {
		prey, ok = view.Nearest()
	}
	if !ok {
		return h.wander(self), nil
	}

	if prey.DistanceToSelf <= h.cfg.KillRange {
		return world.Attack(self, prey.ID), nil
	}
	if prey.IsTarget && h.shouldTaunt(view.TurnNumber, prey.DistanceToSelf) {
		return world.Talk(self, h.taunt(prey.Name)), nil
	}

	step := prey.Position.Sub(view.Self.Position)
	if limit := h.cfg.MaxMoveDistance; limit > 0 {
		step = step.ClampLength(limit)
	}
	return world.Move(self, step.X, step.Y), nil
}

func (h *Hunter) shouldTaunt(turn int, distance float64) bool {
	if h.cfg.TauntEvery <= 0 || distance > h.cfg.ChatRange {
		return false
	}
	return turn%h.cfg.TauntEvery == h.cfg.TauntEvery-1
}

func (h *Hunter) taunt(name string) string {
	h.mu.Lock()
	line := taunts[h.rng.Intn(len(taunts))]
	h.mu.Unlock()
	return fmt.Sprintf(line, name)
}

func (h *Hunter) wander(self string) world.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.cfg.MaxMoveDistance
	return world.Move(self, (h.rng.Float64()*2-1)*r, (h.rng.Float64()*2-1)*r)
}

func (h *Hunter) UpdateView(world.WorldView) {}

// Random moves in a uniformly random direction each turn.
type Random struct {
	maxStep float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(maxStep float64, rng *rand.Rand) *Random {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Random{maxStep: maxStep, rng: rng}
}

func (r *Random) GetAction(ctx context.Context, view world.WorldView) (world.Action, error) {
	if err := ctx.Err(); err != nil {
		return world.Action{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dx := (r.rng.Float64()*2 - 1) * r.maxStep
	dy := (r.rng.Float64()*2 - 1) * r.maxStep
	return world.Move(view.Self.ID, dx, dy), nil
}

func (r *Random) UpdateView(world.WorldView) {}

// Idle stands still. Puppets driven by a renderer use it so that their
// position only changes through reported state.
type Idle struct{}

func (Idle) GetAction(_ context.Context, view world.WorldView) (world.Action, error) {
	return world.Move(view.Self.ID, 0, 0), nil
}

func (Idle) UpdateView(world.WorldView) {}
