package agents

import (
	"context"

	"puppet-arena/server/logging"
)

const (
	// EventFallback is emitted when an agent fails and the engine substitutes a default move.
	EventFallback logging.EventType = "agents.fallback"
	// EventAnomaly is emitted when an action references a puppet it cannot act for.
	EventAnomaly logging.EventType = "agents.anomaly"
)

// FallbackPayload captures the failure that triggered a fallback action.
type FallbackPayload struct {
	Reason string  `json:"reason"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

// AnomalyPayload describes an ignored action.
type AnomalyPayload struct {
	ActionType string `json:"actionType"`
	AgentID    string `json:"agentId"`
	Reason     string `json:"reason"`
}

func Fallback(ctx context.Context, pub logging.Publisher, turn uint64, puppetID string, payload FallbackPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFallback,
		Tick:     turn,
		Actor:    logging.PuppetRef(puppetID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAgents,
		Payload:  payload,
	})
}

func Anomaly(ctx context.Context, pub logging.Publisher, turn uint64, puppetID string, payload AnomalyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAnomaly,
		Tick:     turn,
		Actor:    logging.PuppetRef(puppetID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAgents,
		Payload:  payload,
	})
}
