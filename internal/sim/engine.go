package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	"puppet-arena/server/logging"
	loggingagents "puppet-arena/server/logging/agents"
	loggingmatch "puppet-arena/server/logging/match"
)

// Agent decides the next action for one puppet.
type Agent interface {
	GetAction(ctx context.Context, view world.WorldView) (world.Action, error)
	// UpdateView is a best-effort notification with no return contract.
	UpdateView(view world.WorldView)
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingState indicates NewEngine was invoked without a game state.
	ErrMissingState = errors.New("sim: state is nil")
	// ErrMatchCompleted is returned by Tick once the match has a result.
	ErrMatchCompleted = errors.New("sim: match completed")
)

// EngineOption configures NewEngine behaviour.
type EngineOption func(*Engine)

func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithDeps(deps Deps) EngineOption {
	return func(e *Engine) {
		e.deps = deps
	}
}

// WithMatchID tags published events with the owning match.
func WithMatchID(id string) EngineOption {
	return func(e *Engine) {
		e.matchID = id
	}
}

// Engine resolves turns for one match. It owns the game state; every access
// goes through its mutex, which is held for the full duration of a tick.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	deps    Deps
	matchID string
	state   *world.GameState
	agents  map[string]Agent
	phase   Phase
}

// TickResult summarises one resolved turn.
type TickResult struct {
	Turn         int           `json:"turn"`
	Acted        int           `json:"acted"`
	Skipped      int           `json:"skipped"`
	Failures     int           `json:"failures"`
	Anomalies    int           `json:"anomalies"`
	Eliminations []string      `json:"eliminations,omitempty"`
	Completed    bool          `json:"completed"`
	Winner       string        `json:"winner,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// NewEngine binds agents to the puppets in state, assigns the initial target
// chain and enters the running phase. A state with at most one living puppet
// completes immediately.
func NewEngine(state *world.GameState, agents map[string]Agent, opts ...EngineOption) (*Engine, error) {
	if state == nil {
		return nil, ErrMissingState
	}
	e := &Engine{
		cfg:    DefaultConfig(),
		state:  state,
		agents: make(map[string]Agent, len(agents)),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.cfg = e.cfg.Normalized()
	e.deps = e.deps.withDefaults()
	if e.matchID != "" {
		e.deps.Publisher = logging.ForMatch(e.deps.Publisher, e.matchID)
	}
	for id, agent := range agents {
		if agent != nil {
			e.agents[id] = agent
		}
	}

	world.AssignTargets(state)
	e.phase = PhaseRunning
	if state.EvaluateCompletion(e.nowMillis()) {
		e.complete(context.Background())
	}
	return e, nil
}

func (e *Engine) nowMillis() int64 {
	return e.deps.Clock.Now().UnixMilli()
}

func (e *Engine) viewOptions() world.ViewOptions {
	return world.ViewOptions{
		PerceptionRadius: e.cfg.PerceptionRadius,
		MessageHistory:   e.cfg.MessageHistory,
	}
}

type actionRequest struct {
	puppetID string
	agent    Agent
	view     world.WorldView
}

type actionOutcome struct {
	action world.Action
	err    error
}

// Tick resolves one turn: every puppet alive at the start of the tick is
// asked for an action concurrently, and the results are applied one at a time
// in roster order. Agent failures are replaced with a fallback move and never
// abort the tick. Ticks after completion return ErrMatchCompleted.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseCompleted {
		return TickResult{Turn: e.state.TurnNumber, Completed: true, Winner: e.state.Winner}, ErrMatchCompleted
	}
	started := e.deps.Clock.Now()
	result := TickResult{}

	requests := make([]actionRequest, 0, len(e.state.Puppets))
	for _, p := range e.state.Living() {
		agent, ok := e.agents[p.ID]
		if !ok {
			result.Skipped++
			continue
		}
		view, err := world.BuildView(e.state, p.ID, e.viewOptions())
		if err != nil {
			return result, fmt.Errorf("build view for %s: %w", p.ID, err)
		}
		requests = append(requests, actionRequest{puppetID: p.ID, agent: agent, view: view})
	}

	outcomes := make([]actionOutcome, len(requests))
	var g errgroup.Group
	if e.cfg.MaxConcurrentAgents > 0 {
		g.SetLimit(e.cfg.MaxConcurrentAgents)
	}
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			outcomes[i] = e.requestAction(ctx, req)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	for i, req := range requests {
		e.resolve(ctx, req.puppetID, outcomes[i], &result)
	}

	e.state.TurnNumber++
	result.Turn = e.state.TurnNumber
	if e.state.EvaluateCompletion(e.nowMillis()) {
		e.complete(ctx)
	}
	result.Completed = e.state.Completed
	result.Winner = e.state.Winner
	result.Duration = e.deps.Clock.Now().Sub(started)

	e.deps.Metrics.Add(telemetry.MetricTicks, 1)
	e.deps.Metrics.Store(telemetry.MetricLastTickMillis, uint64(result.Duration.Milliseconds()))
	loggingmatch.TurnResolved(ctx, e.deps.Publisher, e.matchID, uint64(result.Turn), loggingmatch.TurnResolvedPayload{
		Acted:        result.Acted,
		Failures:     result.Failures,
		Eliminations: len(result.Eliminations),
		Living:       e.state.LivingCount(),
		DurationMS:   result.Duration.Milliseconds(),
	})
	return result, nil
}

// requestAction runs one agent under the per-call timeout. The call happens
// on its own goroutine so an agent that ignores its context cannot stall the
// tick.
func (e *Engine) requestAction(ctx context.Context, req actionRequest) actionOutcome {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AgentTimeout)
	defer cancel()

	replies := make(chan actionOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- actionOutcome{err: fmt.Errorf("%w: agent panicked: %v", world.ErrAgentFailure, r)}
			}
		}()
		action, err := req.agent.GetAction(callCtx, req.view)
		replies <- actionOutcome{action: action, err: err}
	}()

	select {
	case out := <-replies:
		if out.err != nil {
			if !errors.Is(out.err, world.ErrAgentFailure) {
				out.err = fmt.Errorf("%w: %v", world.ErrAgentFailure, out.err)
			}
			return out
		}
		if err := out.action.Validate(); err != nil {
			return actionOutcome{err: fmt.Errorf("%w: %v", world.ErrAgentFailure, err)}
		}
		return out
	case <-callCtx.Done():
		return actionOutcome{err: fmt.Errorf("%w: %v", world.ErrAgentFailure, callCtx.Err())}
	}
}

func (e *Engine) resolve(ctx context.Context, puppetID string, out actionOutcome, result *TickResult) {
	puppet, ok := e.state.Puppet(puppetID)
	if !ok {
		return
	}
	now := e.nowMillis()
	action := out.action
	if out.err != nil {
		action = e.fallbackAction(puppetID)
		result.Failures++
		e.deps.Metrics.Add(telemetry.MetricAgentFailures, 1)
		e.deps.Logger.Printf("[sim] match=%s puppet=%s agent failed: %v", e.matchID, puppetID, out.err)
		e.state.RecordEvent(world.Event{
			Kind:      world.EventFallback,
			Turn:      e.state.TurnNumber + 1,
			AgentID:   puppetID,
			Detail:    out.err.Error(),
			Timestamp: now,
		})
		loggingagents.Fallback(ctx, e.deps.Publisher, uint64(e.state.TurnNumber+1), puppetID, loggingagents.FallbackPayload{
			Reason: out.err.Error(),
			DX:     action.Delta.X,
			DY:     action.Delta.Y,
		})
	}

	if action.AgentID == "" {
		action.AgentID = puppetID
	}
	if action.AgentID != puppetID {
		e.recordAnomaly(ctx, puppetID, action, now)
		result.Anomalies++
		return
	}
	if action.Timestamp == 0 {
		action.Timestamp = now
	}

	event := world.Event{
		Turn:      e.state.TurnNumber + 1,
		AgentID:   puppet.ID,
		Timestamp: action.Timestamp,
	}
	switch action.Type {
	case world.ActionMove:
		e.applyMove(puppet, &action)
		event.Kind = world.EventMove
		event.Detail = fmt.Sprintf("to %.1f,%.1f", puppet.Position.X, puppet.Position.Y)
		e.state.RecordEvent(event)
	case world.ActionAttack:
		// The attack is logged before any elimination it causes.
		event.Kind = world.EventAttack
		event.TargetID = action.TargetID
		e.state.RecordEvent(event)
		if victim, ok := e.applyAttack(ctx, puppet, action, now); ok {
			result.Eliminations = append(result.Eliminations, victim)
		}
	case world.ActionTalk:
		event.Kind = world.EventTalk
		event.Detail = action.Message
		e.state.RecordEvent(event)
		e.state.AppendMessage(world.Message{From: puppet.ID, Content: action.Message, Timestamp: action.Timestamp})
		puppet.LastMessage = action.Message
	}

	stored := action.Clone()
	puppet.LastAction = &stored
	result.Acted++
}

func (e *Engine) recordAnomaly(ctx context.Context, puppetID string, action world.Action, now int64) {
	reason := "agent id names another puppet"
	if other, ok := e.state.Puppet(action.AgentID); !ok {
		reason = "agent id names an unknown puppet"
	} else if !other.IsAlive {
		reason = "agent id names a dead puppet"
	}
	e.deps.Metrics.Add(telemetry.MetricProtocolAnomalies, 1)
	e.state.RecordEvent(world.Event{
		Kind:      world.EventAnomaly,
		Turn:      e.state.TurnNumber + 1,
		AgentID:   puppetID,
		TargetID:  action.AgentID,
		Detail:    reason,
		Timestamp: now,
	})
	loggingagents.Anomaly(ctx, e.deps.Publisher, uint64(e.state.TurnNumber+1), puppetID, loggingagents.AnomalyPayload{
		ActionType: string(action.Type),
		AgentID:    action.AgentID,
		Reason:     reason,
	})
}

func (e *Engine) fallbackAction(puppetID string) world.Action {
	r := e.cfg.FallbackMoveRange
	dx := (e.deps.RNG.Float64()*2 - 1) * r
	dy := (e.deps.RNG.Float64()*2 - 1) * r
	return world.Move(puppetID, dx, dy)
}

func (e *Engine) applyMove(p *world.Puppet, action *world.Action) {
	delta := action.Delta.ClampLength(e.cfg.MaxMoveDistance)
	action.Delta = &delta
	next := p.Position.Add(delta)
	if e.cfg.ClampToBounds {
		next = e.state.Environment.Clamp(next)
	}
	p.Position = next
}

func (e *Engine) complete(ctx context.Context) {
	e.phase = PhaseCompleted
	loggingmatch.Completed(ctx, e.deps.Publisher, e.matchID, uint64(e.state.TurnNumber), loggingmatch.CompletedPayload{
		Winner: e.state.Winner,
		Turns:  e.state.TurnNumber,
	})
}

// Phase reports the engine's lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() world.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// ReassignTargets rebuilds the circular target chain over living puppets.
func (e *Engine) ReassignTargets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return world.AssignTargets(e.state)
}

// View builds the world view for one puppet.
func (e *Engine) View(puppetID string) (world.WorldView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return world.BuildView(e.state, puppetID, e.viewOptions())
}
