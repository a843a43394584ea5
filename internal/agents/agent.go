// Package agents provides the bundled decision makers that drive puppets and
// the factory that binds a roster entry to one of them.
package agents

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"puppet-arena/server/internal/world"
)

// Agent decides the next action for one puppet.
type Agent interface {
	GetAction(ctx context.Context, view world.WorldView) (world.Action, error)
	UpdateView(view world.WorldView)
}

type Kind string

const (
	KindHunter Kind = "hunter"
	KindRandom Kind = "random"
	KindIdle   Kind = "idle"
	KindLua    Kind = "lua"
	KindRemote Kind = "remote"
)

var kindAliases = map[string]Kind{
	"hunter":    KindHunter,
	"ai":        KindHunter,
	"scripted":  KindHunter,
	"heuristic": KindHunter,
	"random":    KindRandom,
	"idle":      KindIdle,
	"human":     KindIdle,
	"player":    KindIdle,
	"lua":       KindLua,
	"remote":    KindRemote,
}

// ParseKind resolves a roster type, including its aliases.
func ParseKind(raw string) (Kind, error) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: unknown agent type %q", world.ErrValidation, raw)
	}
	return kind, nil
}

const (
	DefaultChatRange     = 5.0
	DefaultTauntEvery    = 4
	DefaultRemoteTimeout = 15 * time.Second
)

type FactoryConfig struct {
	KillRange       float64
	MaxMoveDistance float64
	ChatRange       float64
	TauntEvery      int
	RemoteTimeout   time.Duration
	ObserveTimeout  time.Duration
	HTTPClient      *http.Client
	Seed            int64
}

func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		KillRange:       1,
		MaxMoveDistance: 3,
		ChatRange:       DefaultChatRange,
		TauntEvery:      DefaultTauntEvery,
		RemoteTimeout:   DefaultRemoteTimeout,
		ObserveTimeout:  DefaultObserveTimeout,
	}
}

// Factory turns roster entries into agents. It is safe for concurrent use.
type Factory struct {
	cfg FactoryConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewFactory(cfg FactoryConfig) *Factory {
	defaults := DefaultFactoryConfig()
	if cfg.KillRange <= 0 {
		cfg.KillRange = defaults.KillRange
	}
	if cfg.MaxMoveDistance <= 0 {
		cfg.MaxMoveDistance = defaults.MaxMoveDistance
	}
	if cfg.ChatRange <= 0 {
		cfg.ChatRange = defaults.ChatRange
	}
	if cfg.TauntEvery < 0 {
		cfg.TauntEvery = 0
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = defaults.RemoteTimeout
	}
	if cfg.ObserveTimeout <= 0 {
		cfg.ObserveTimeout = defaults.ObserveTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.RemoteTimeout}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// childRNG hands each agent its own generator so agents can run concurrently.
func (f *Factory) childRNG() *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rand.New(rand.NewSource(f.rng.Int63()))
}

// New builds the agent for one roster entry. The error wraps
// world.ErrValidation when the entry cannot be bound.
func (f *Factory) New(pc world.PuppetConfig) (Agent, error) {
	kind, err := ParseKind(pc.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindHunter:
		return NewHunter(HunterConfig{
			KillRange:       f.cfg.KillRange,
			MaxMoveDistance: f.cfg.MaxMoveDistance,
			ChatRange:       f.cfg.ChatRange,
			TauntEvery:      f.cfg.TauntEvery,
		}, f.childRNG()), nil
	case KindRandom:
		return NewRandom(f.cfg.MaxMoveDistance, f.childRNG()), nil
	case KindIdle:
		return Idle{}, nil
	case KindLua:
		agent, err := NewLuaAgent(pc.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", world.ErrValidation, err)
		}
		agent.observeTimeout = f.cfg.ObserveTimeout
		return agent, nil
	case KindRemote:
		agent, err := NewRemote(pc.Endpoint, f.cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		return agent, nil
	default:
		return nil, fmt.Errorf("%w: unsupported agent type %q", world.ErrValidation, pc.Type)
	}
}
