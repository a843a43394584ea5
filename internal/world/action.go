package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionAttack ActionType = "attack"
	ActionTalk   ActionType = "talk"
)

// Action is the tagged union an agent returns each turn. Only the fields that
// belong to Type are meaningful.
type Action struct {
	Type      ActionType `json:"type"`
	AgentID   string     `json:"agentId"`
	Timestamp int64      `json:"timestamp,omitempty"`
	Delta     *Vector    `json:"delta,omitempty"`
	TargetID  string     `json:"targetId,omitempty"`
	Message   string     `json:"message,omitempty"`
}

func Move(agentID string, dx, dy float64) Action {
	return Action{Type: ActionMove, AgentID: agentID, Delta: &Vector{X: dx, Y: dy}}
}

func Attack(agentID, targetID string) Action {
	return Action{Type: ActionAttack, AgentID: agentID, TargetID: targetID}
}

func Talk(agentID, message string) Action {
	return Action{Type: ActionTalk, AgentID: agentID, Message: message}
}

// Validate checks the structural shape of the action. It does not look at
// game state.
func (a Action) Validate() error {
	switch a.Type {
	case ActionMove:
		if a.Delta == nil {
			return fmt.Errorf("%w: move requires delta", ErrValidation)
		}
		if !a.Delta.Finite() {
			return fmt.Errorf("%w: move delta must be finite", ErrValidation)
		}
	case ActionAttack:
		if strings.TrimSpace(a.TargetID) == "" {
			return fmt.Errorf("%w: attack requires targetId", ErrValidation)
		}
	case ActionTalk:
		if strings.TrimSpace(a.Message) == "" {
			return fmt.Errorf("%w: talk requires message", ErrValidation)
		}
	case "":
		return fmt.Errorf("%w: action type missing", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrValidation, a.Type)
	}
	return nil
}

func (a Action) Clone() Action {
	cloned := a
	if a.Delta != nil {
		delta := *a.Delta
		cloned.Delta = &delta
	}
	return cloned
}

// DecodeAction parses an action from JSON. Both the bare form and the
// {"action": {...}} envelope produced by structured-output generators are
// accepted. The result is validated.
func DecodeAction(data []byte) (Action, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Action{}, fmt.Errorf("%w: empty action payload", ErrValidation)
	}
	var envelope struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Action{}, fmt.Errorf("%w: decode action: %v", ErrValidation, err)
	}
	if len(envelope.Action) > 0 && !bytes.Equal(envelope.Action, []byte("null")) {
		data = envelope.Action
	}
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Action{}, fmt.Errorf("%w: decode action: %v", ErrValidation, err)
	}
	if err := action.Validate(); err != nil {
		return Action{}, err
	}
	return action, nil
}
