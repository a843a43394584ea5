package combat

import (
	"context"

	"puppet-arena/server/logging"
)

const (
	// EventElimination is emitted when an attack removes a puppet from play.
	EventElimination logging.EventType = "combat.elimination"
	// EventAttackMissed is emitted when an attack names a target outside kill range.
	EventAttackMissed logging.EventType = "combat.attack_missed"
)

// EliminationPayload describes a successful touch kill and the resulting chain repair.
type EliminationPayload struct {
	Distance     float64  `json:"distance"`
	InheritedBy  []string `json:"inheritedBy,omitempty"`
	NewTarget    string   `json:"newTarget,omitempty"`
	LivingRemain int      `json:"livingRemain"`
}

// AttackMissedPayload records why an attack had no effect.
type AttackMissedPayload struct {
	Reason   string  `json:"reason"`
	Distance float64 `json:"distance,omitempty"`
}

// Elimination publishes a combat elimination event.
func Elimination(ctx context.Context, pub logging.Publisher, turn uint64, actor, victim logging.EntityRef, payload EliminationPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventElimination,
		Tick:     turn,
		Actor:    actor,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// AttackMissed publishes a debug event for an attack that only recorded intent.
func AttackMissed(ctx context.Context, pub logging.Publisher, turn uint64, actor, target logging.EntityRef, payload AttackMissedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttackMissed,
		Tick:     turn,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
