package sim

import "time"

const (
	DefaultAgentTimeout      = 10 * time.Second
	DefaultKillRange         = 1.0
	DefaultMaxMoveDistance   = 3.0
	DefaultFallbackMoveRange = 5.0
)

// Config tunes turn resolution.
type Config struct {
	// AgentTimeout bounds a single action request.
	AgentTimeout time.Duration
	// KillRange is the distance within which an attack eliminates its target.
	KillRange float64
	// MaxMoveDistance caps the length of a move delta. Zero disables the cap.
	MaxMoveDistance float64
	ClampToBounds   bool
	// FallbackMoveRange bounds each component of the random move substituted
	// for a failed agent.
	FallbackMoveRange   float64
	PerceptionRadius    float64
	MessageHistory      int
	MaxConcurrentAgents int
}

func DefaultConfig() Config {
	return Config{
		AgentTimeout:      DefaultAgentTimeout,
		KillRange:         DefaultKillRange,
		MaxMoveDistance:   DefaultMaxMoveDistance,
		ClampToBounds:     true,
		FallbackMoveRange: DefaultFallbackMoveRange,
	}
}

// Normalized fills zero values that have no meaningful zero behaviour.
func (c Config) Normalized() Config {
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = DefaultAgentTimeout
	}
	if c.KillRange <= 0 {
		c.KillRange = DefaultKillRange
	}
	if c.MaxMoveDistance < 0 {
		c.MaxMoveDistance = 0
	}
	if c.FallbackMoveRange <= 0 {
		c.FallbackMoveRange = DefaultFallbackMoveRange
	}
	if c.PerceptionRadius < 0 {
		c.PerceptionRadius = 0
	}
	if c.MaxConcurrentAgents < 0 {
		c.MaxConcurrentAgents = 0
	}
	return c
}
