package network

import (
	"context"

	"puppet-arena/server/logging"
)

const (
	// EventProtocolError is emitted when a connection sends a message the gateway rejects.
	EventProtocolError logging.EventType = "network.protocol_error"
	// EventStateReported is emitted when a client state report is reconciled.
	EventStateReported logging.EventType = "network.state_reported"
	// EventSubscribed is emitted when a connection joins a match broadcast set.
	EventSubscribed logging.EventType = "network.subscribed"
	// EventUnsubscribed is emitted when a connection leaves every broadcast set.
	EventUnsubscribed logging.EventType = "network.unsubscribed"
)

// ProtocolErrorPayload describes a rejected message.
type ProtocolErrorPayload struct {
	MessageType string `json:"messageType,omitempty"`
	Code        string `json:"code"`
	Error       string `json:"error"`
}

// StateReportedPayload summarises a reconciliation pass.
type StateReportedPayload struct {
	Mode     string   `json:"mode"`
	Updated  []string `json:"updated,omitempty"`
	Inserted []string `json:"inserted,omitempty"`
	Rejected int      `json:"rejected,omitempty"`
}

// SubscriptionPayload captures broadcast set membership changes.
type SubscriptionPayload struct {
	Matches int `json:"matches"`
}

func connRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindConnection}
}

func ProtocolError(ctx context.Context, pub logging.Publisher, connID string, payload ProtocolErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProtocolError,
		Actor:    connRef(connID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func StateReported(ctx context.Context, pub logging.Publisher, matchID, connID string, turn uint64, payload StateReportedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateReported,
		Tick:     turn,
		Match:    matchID,
		Actor:    connRef(connID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func Subscribed(ctx context.Context, pub logging.Publisher, matchID, connID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscribed,
		Match:    matchID,
		Actor:    connRef(connID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
	})
}

func Unsubscribed(ctx context.Context, pub logging.Publisher, connID string, payload SubscriptionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnsubscribed,
		Actor:    connRef(connID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
