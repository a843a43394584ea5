package server

import (
	"time"

	"puppet-arena/server/internal/agents"
	"puppet-arena/server/internal/avatar"
	"puppet-arena/server/internal/sim"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	"puppet-arena/server/logging"
)

const (
	DefaultTickInterval       = 2 * time.Second
	DefaultCompletedRetention = 5 * time.Minute
)

// AgentFactory binds a roster entry to an agent.
type AgentFactory interface {
	New(world.PuppetConfig) (agents.Agent, error)
}

// GatewayConfig captures the tunables and collaborators of a Gateway.
type GatewayConfig struct {
	TickInterval time.Duration
	// CompletedRetention is how long a finished match stays subscribable
	// before it is removed.
	CompletedRetention time.Duration
	ReconcileMode      world.ReconcileMode
	Engine             sim.Config
	Agents             AgentFactory
	// Avatars, when set, fills in avatar URLs for puppets that arrive
	// without one.
	Avatars avatar.Generator

	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   *logging.Metrics
	Clock     logging.Clock
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		TickInterval:       DefaultTickInterval,
		CompletedRetention: DefaultCompletedRetention,
		ReconcileMode:      world.ReconcileAuthoritative,
		Engine:             sim.DefaultConfig(),
	}
}

func (c GatewayConfig) normalized() GatewayConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = DefaultCompletedRetention
	}
	if c.ReconcileMode == "" {
		c.ReconcileMode = world.ReconcileAuthoritative
	}
	c.Engine = c.Engine.Normalized()
	if c.Agents == nil {
		factory := agents.DefaultFactoryConfig()
		factory.KillRange = c.Engine.KillRange
		factory.MaxMoveDistance = c.Engine.MaxMoveDistance
		c.Agents = agents.NewFactory(factory)
	}
	if c.Logger == nil {
		c.Logger = telemetry.Discard()
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	if c.Metrics == nil {
		c.Metrics = &logging.Metrics{}
	}
	if c.Clock == nil {
		c.Clock = logging.ClockFunc(time.Now)
	}
	return c
}
