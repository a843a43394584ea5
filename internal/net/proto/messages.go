package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"puppet-arena/server/internal/world"
)

// Client message type identifiers.
const (
	TypeStartGame   = "start_game"
	TypeStateUpdate = "state_update"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Server message type identifiers. State updates share TypeStateUpdate.
const (
	TypeGameStarted = "game_started"
	TypeError       = "error"
)

// Error codes carried by error messages.
const (
	CodeProtocol   = "protocol"
	CodeNotFound   = "not_found"
	CodeValidation = "validation"
	CodeInternal   = "internal"
)

// StartGame asks the server to create a match.
type StartGame struct {
	Type   string            `json:"type"`
	Config world.MatchConfig `json:"config"`
}

// ClientStateUpdate reports renderer-observed state. GameID is optional and
// defaults to the connection's most recent subscription.
type ClientStateUpdate struct {
	Type   string             `json:"type"`
	GameID string             `json:"gameId,omitempty"`
	State  world.PartialState `json:"state"`
}

type Subscribe struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

type Unsubscribe struct {
	Type string `json:"type"`
}

type GameStarted struct {
	Type    string `json:"type"`
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// StateUpdate carries the full authoritative state of one match.
type StateUpdate struct {
	Type   string          `json:"type"`
	GameID string          `json:"gameId,omitempty"`
	State  world.GameState `json:"state"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode parses an inbound message into one of the client message types.
// Malformed JSON and unknown types wrap world.ErrProtocol.
func Decode(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %v", world.ErrProtocol, err)
	}

	var msg any
	switch envelope.Type {
	case TypeStartGame:
		msg = &StartGame{}
	case TypeStateUpdate:
		msg = &ClientStateUpdate{}
	case TypeSubscribe:
		msg = &Subscribe{}
	case TypeUnsubscribe:
		msg = &Unsubscribe{}
	case "":
		return nil, fmt.Errorf("%w: message type missing", world.ErrProtocol)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", world.ErrProtocol, envelope.Type)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: malformed %s payload: %v", world.ErrProtocol, envelope.Type, err)
	}
	if sub, ok := msg.(*Subscribe); ok && sub.GameID == "" {
		return nil, fmt.Errorf("%w: subscribe requires gameId", world.ErrValidation)
	}
	return msg, nil
}

func EncodeGameStarted(gameID string) ([]byte, error) {
	return json.Marshal(GameStarted{
		Type:    TypeGameStarted,
		GameID:  gameID,
		Message: "Game started successfully",
	})
}

func EncodeStateUpdate(gameID string, state world.GameState) ([]byte, error) {
	return json.Marshal(StateUpdate{Type: TypeStateUpdate, GameID: gameID, State: state})
}

// ErrorFor maps an error onto the wire error message.
func ErrorFor(err error) Error {
	msg := Error{Type: TypeError, Code: CodeInternal}
	if err == nil {
		return msg
	}
	msg.Message = err.Error()
	switch {
	case errors.Is(err, world.ErrNotFound):
		msg.Code = CodeNotFound
	case errors.Is(err, world.ErrValidation):
		msg.Code = CodeValidation
	case errors.Is(err, world.ErrProtocol):
		msg.Code = CodeProtocol
	}
	return msg
}

func EncodeError(err error) ([]byte, error) {
	return json.Marshal(ErrorFor(err))
}
