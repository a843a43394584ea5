package world

import "errors"

// Error taxonomy shared by the engine, gateway and protocol layers. Callers
// wrap these with context and match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrProtocol     = errors.New("protocol error")
	ErrAgentFailure = errors.New("agent failure")
	ErrValidation   = errors.New("validation error")
)
