package sim

import (
	"context"
	"fmt"

	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	"puppet-arena/server/logging"
	loggingcombat "puppet-arena/server/logging/combat"
)

// Attack miss reasons.
const (
	missUnknownTarget = "unknown_target"
	missSelf          = "self_target"
	missTargetDead    = "target_dead"
	missOutOfRange    = "out_of_range"
)

// applyAttack resolves a touch attack. The target is eliminated only when it
// is a living puppet other than the attacker within kill range; otherwise the
// attack only records intent. Every living hunter of the victim inherits the
// victim's target.
func (e *Engine) applyAttack(ctx context.Context, attacker *world.Puppet, action world.Action, now int64) (string, bool) {
	turn := uint64(e.state.TurnNumber + 1)
	actorRef := logging.PuppetRef(attacker.ID)
	targetRef := logging.PuppetRef(action.TargetID)

	target, ok := e.state.Puppet(action.TargetID)
	if !ok {
		loggingcombat.AttackMissed(ctx, e.deps.Publisher, turn, actorRef, targetRef, loggingcombat.AttackMissedPayload{Reason: missUnknownTarget})
		return "", false
	}
	if target.ID == attacker.ID {
		loggingcombat.AttackMissed(ctx, e.deps.Publisher, turn, actorRef, targetRef, loggingcombat.AttackMissedPayload{Reason: missSelf})
		return "", false
	}
	distance := world.Distance(attacker.Position, target.Position)
	if !target.IsAlive {
		loggingcombat.AttackMissed(ctx, e.deps.Publisher, turn, actorRef, targetRef, loggingcombat.AttackMissedPayload{Reason: missTargetDead, Distance: distance})
		return "", false
	}
	if distance > e.cfg.KillRange {
		loggingcombat.AttackMissed(ctx, e.deps.Publisher, turn, actorRef, targetRef, loggingcombat.AttackMissedPayload{Reason: missOutOfRange, Distance: distance})
		return "", false
	}

	target.IsAlive = false
	heirs, next := world.RepairChain(e.state, target.ID)
	e.state.RecordEvent(world.Event{
		Kind:      world.EventElimination,
		Turn:      int(turn),
		AgentID:   attacker.ID,
		TargetID:  target.ID,
		Detail:    fmt.Sprintf("%s eliminated %s", attacker.Name, target.Name),
		Timestamp: now,
	})
	e.deps.Metrics.Add(telemetry.MetricEliminations, 1)
	loggingcombat.Elimination(ctx, e.deps.Publisher, turn, actorRef, targetRef, loggingcombat.EliminationPayload{
		Distance:     distance,
		InheritedBy:  heirs,
		NewTarget:    next,
		LivingRemain: e.state.LivingCount(),
	})
	return target.ID, true
}
