package match

import (
	"context"

	"puppet-arena/server/logging"
)

const (
	// EventStarted is emitted when the gateway registers a new match.
	EventStarted logging.EventType = "match.started"
	// EventTurnResolved is emitted after every tick.
	EventTurnResolved logging.EventType = "match.turn_resolved"
	// EventCompleted is emitted once when at most one puppet remains.
	EventCompleted logging.EventType = "match.completed"
	// EventStopped is emitted when a match is removed from the gateway.
	EventStopped logging.EventType = "match.stopped"
)

// StartedPayload captures the initial roster size and arena bounds.
type StartedPayload struct {
	Puppets int     `json:"puppets"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// TurnResolvedPayload summarises one tick.
type TurnResolvedPayload struct {
	Acted        int   `json:"acted"`
	Failures     int   `json:"failures"`
	Eliminations int   `json:"eliminations"`
	Living       int   `json:"living"`
	DurationMS   int64 `json:"durationMs"`
}

// CompletedPayload names the winner, if any.
type CompletedPayload struct {
	Winner string `json:"winner,omitempty"`
	Turns  int    `json:"turns"`
}

// StoppedPayload records why a match left the registry.
type StoppedPayload struct {
	Reason string `json:"reason"`
}

func Started(ctx context.Context, pub logging.Publisher, matchID string, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarted,
		Match:    matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func TurnResolved(ctx context.Context, pub logging.Publisher, matchID string, turn uint64, payload TurnResolvedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTurnResolved,
		Tick:     turn,
		Match:    matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Completed(ctx context.Context, pub logging.Publisher, matchID string, turn uint64, payload CompletedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCompleted,
		Tick:     turn,
		Match:    matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	}
	if payload.Winner != "" {
		event.Targets = []logging.EntityRef{logging.PuppetRef(payload.Winner)}
	}
	pub.Publish(ctx, event)
}

func Stopped(ctx context.Context, pub logging.Publisher, matchID string, turn uint64, payload StoppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStopped,
		Tick:     turn,
		Match:    matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}
