package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"puppet-arena/server/internal/avatar"
	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/internal/sim"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	loggingmatch "puppet-arena/server/logging/match"
	loggingnetwork "puppet-arena/server/logging/network"
)

// Connection is a subscriber endpoint. Implementations must be comparable and
// safe for concurrent Send calls.
type Connection interface {
	Send([]byte) error
	Close() error
}

// ErrGatewayClosed is returned once Close has been called.
var ErrGatewayClosed = errors.New("server: gateway closed")

// Gateway owns every running match and the connections subscribed to them.
type Gateway struct {
	cfg     GatewayConfig
	metrics telemetry.Metrics

	mu            sync.Mutex
	matches       map[string]*Match
	subscriptions map[Connection][]string
	closed        bool

	wg sync.WaitGroup
}

func NewGateway(cfg GatewayConfig) *Gateway {
	cfg = cfg.normalized()
	return &Gateway{
		cfg:           cfg,
		metrics:       telemetry.WrapMetrics(cfg.Metrics),
		matches:       make(map[string]*Match),
		subscriptions: make(map[Connection][]string),
	}
}

// StartMatch validates the roster, binds an agent to every puppet, assigns
// the target chain and schedules the match's recurring tick. The caller
// subscribes connections separately.
func (g *Gateway) StartMatch(ctx context.Context, cfg world.MatchConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	env := cfg.ResolvedEnvironment()
	state := world.NewGameState(env)
	spawns := world.SpawnRing(env, len(cfg.Puppets))
	bound := make(map[string]sim.Agent, len(cfg.Puppets))
	var closers []io.Closer
	for i, pc := range cfg.Puppets {
		agent, err := g.cfg.Agents.New(pc)
		if err != nil {
			closeAll(closers)
			return "", fmt.Errorf("puppet %d: %w", i, err)
		}
		if closer, ok := agent.(io.Closer); ok {
			closers = append(closers, closer)
		}
		puppet := world.Puppet{
			ID:        fmt.Sprintf("puppet-%d", i+1),
			Name:      pc.PuppetName(i),
			Position:  spawns[i],
			IsAlive:   true,
			AvatarURL: pc.AvatarURL,
		}
		if pc.Stats != nil {
			stats := *pc.Stats
			puppet.Stats = &stats
		}
		if puppet.AvatarURL == "" {
			puppet.AvatarURL = g.avatarFor(ctx, pc)
		}
		if _, err := state.AddPuppet(puppet); err != nil {
			closeAll(closers)
			return "", err
		}
		bound[puppet.ID] = agent
	}

	id := uuid.NewString()
	deps := sim.Deps{
		Logger:    g.cfg.Logger,
		Publisher: g.cfg.Publisher,
		Metrics:   g.metrics,
		Clock:     g.cfg.Clock,
	}
	if cfg.Seed != nil {
		deps.RNG = rand.New(rand.NewSource(*cfg.Seed))
	}
	engine, err := sim.NewEngine(state, bound, sim.WithConfig(g.cfg.Engine), sim.WithDeps(deps), sim.WithMatchID(id))
	if err != nil {
		closeAll(closers)
		return "", err
	}

	match := newMatch(id, engine, closers, g.cfg.Clock.Now())

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		closeAll(closers)
		return "", ErrGatewayClosed
	}
	g.matches[id] = match
	active := len(g.matches)
	g.wg.Add(1)
	g.mu.Unlock()

	g.metrics.Store(telemetry.MetricActiveMatches, uint64(active))
	loggingmatch.Started(ctx, g.cfg.Publisher, id, loggingmatch.StartedPayload{
		Puppets: len(cfg.Puppets),
		Width:   env.Width,
		Height:  env.Height,
	})
	g.cfg.Logger.Printf("[gateway] match %s started with %d puppets", id, len(cfg.Puppets))

	go g.run(match)
	return id, nil
}

func (g *Gateway) avatarFor(ctx context.Context, pc world.PuppetConfig) string {
	if g.cfg.Avatars == nil {
		return world.DefaultAvatarURL
	}
	url, err := g.cfg.Avatars.Generate(ctx, avatar.Enhance(avatar.PromptFor(pc.Avatar)))
	if err != nil || url == "" {
		g.cfg.Logger.Printf("[gateway] avatar generation failed, using default: %v", err)
		return world.DefaultAvatarURL
	}
	return url
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// run drives one match until it completes or is stopped. Ticks are
// synchronous so a new tick never starts while the previous one is pending.
func (g *Gateway) run(m *Match) {
	defer g.wg.Done()
	defer close(m.done)

	if m.engine.Phase() == sim.PhaseCompleted {
		g.finish(m)
		return
	}

	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			result, err := m.engine.Tick(m.ctx)
			switch {
			case errors.Is(err, sim.ErrMatchCompleted):
				g.broadcast(m)
				g.finish(m)
				return
			case err != nil:
				if m.ctx.Err() != nil {
					return
				}
				g.cfg.Logger.Printf("[gateway] match %s tick failed: %v", m.id, err)
				continue
			}
			g.broadcast(m)
			if result.Completed {
				g.finish(m)
				return
			}
		}
	}
}

// finish schedules removal of a completed match.
func (g *Gateway) finish(m *Match) {
	snapshot := m.engine.Snapshot()
	g.cfg.Logger.Printf("[gateway] match %s completed after %d turns winner=%q", m.id, snapshot.TurnNumber, snapshot.Winner)
	m.markCompleted(g.cfg.Clock.Now(), time.AfterFunc(g.cfg.CompletedRetention, func() {
		g.removeMatch(m.id, "retention elapsed")
	}))
}

// broadcast encodes the current snapshot once and sends it to every
// subscriber. Connections that fail are dropped and closed.
func (g *Gateway) broadcast(m *Match) {
	snapshot := m.engine.Snapshot()
	data, err := proto.EncodeStateUpdate(m.id, snapshot)
	if err != nil {
		g.cfg.Logger.Printf("[gateway] failed to encode state for %s: %v", m.id, err)
		return
	}

	subs := m.subscribers()
	for _, conn := range subs {
		if err := conn.Send(data); err != nil {
			g.cfg.Logger.Printf("[gateway] dropping subscriber of %s: %v", m.id, err)
			g.Unsubscribe(conn)
			conn.Close()
		}
	}
	g.metrics.Add(telemetry.MetricBroadcasts, 1)
	g.metrics.Add(telemetry.MetricBroadcastBytes, uint64(len(data)*len(subs)))
}

func (g *Gateway) lookup(matchID string) (*Match, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGatewayClosed
	}
	m, ok := g.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: match %q", world.ErrNotFound, matchID)
	}
	return m, nil
}

// Subscribe adds conn to the match's broadcast set and immediately sends it
// the current state.
func (g *Gateway) Subscribe(ctx context.Context, matchID string, conn Connection) error {
	if conn == nil {
		return fmt.Errorf("%w: nil connection", world.ErrValidation)
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	m, ok := g.matches[matchID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: match %q", world.ErrNotFound, matchID)
	}
	m.addSubscriber(conn)
	ids := removeID(g.subscriptions[conn], matchID)
	g.subscriptions[conn] = append(ids, matchID)
	g.mu.Unlock()

	loggingnetwork.Subscribed(ctx, g.cfg.Publisher, matchID, connID(conn))

	data, err := proto.EncodeStateUpdate(matchID, m.engine.Snapshot())
	if err != nil {
		return err
	}
	return conn.Send(data)
}

// Unsubscribe removes conn from every broadcast set. Matches keep running.
func (g *Gateway) Unsubscribe(conn Connection) {
	g.mu.Lock()
	ids := g.subscriptions[conn]
	delete(g.subscriptions, conn)
	for _, id := range ids {
		if m, ok := g.matches[id]; ok {
			m.removeSubscriber(conn)
		}
	}
	g.mu.Unlock()

	if len(ids) > 0 {
		loggingnetwork.Unsubscribed(context.Background(), g.cfg.Publisher, connID(conn), loggingnetwork.SubscriptionPayload{Matches: len(ids)})
	}
}

// ReportClientState folds a client-observed partial state into a match the
// connection is subscribed to. An empty matchID selects the connection's
// most recent subscription.
func (g *Gateway) ReportClientState(ctx context.Context, conn Connection, matchID string, partial world.PartialState) (world.ReconcileResult, error) {
	g.mu.Lock()
	ids := g.subscriptions[conn]
	if len(ids) == 0 {
		g.mu.Unlock()
		return world.ReconcileResult{}, fmt.Errorf("%w: connection is not subscribed to any match", world.ErrProtocol)
	}
	if matchID == "" {
		matchID = ids[len(ids)-1]
	} else if !containsID(ids, matchID) {
		_, exists := g.matches[matchID]
		g.mu.Unlock()
		if !exists {
			return world.ReconcileResult{}, fmt.Errorf("%w: match %q", world.ErrNotFound, matchID)
		}
		return world.ReconcileResult{}, fmt.Errorf("%w: connection is not subscribed to match %q", world.ErrProtocol, matchID)
	}
	m, ok := g.matches[matchID]
	g.mu.Unlock()
	if !ok {
		return world.ReconcileResult{}, fmt.Errorf("%w: match %q", world.ErrNotFound, matchID)
	}

	result, err := m.engine.Reconcile(ctx, partial, g.cfg.ReconcileMode)
	snapshot := m.engine.Snapshot()
	loggingnetwork.StateReported(ctx, g.cfg.Publisher, matchID, connID(conn), uint64(snapshot.TurnNumber), loggingnetwork.StateReportedPayload{
		Mode:     string(result.Mode),
		Updated:  result.Updated,
		Inserted: result.Inserted,
		Rejected: result.Rejected,
	})
	return result, err
}

// StopMatch cancels a match's tick loop and removes it from the registry.
func (g *Gateway) StopMatch(matchID string) error {
	if !g.removeMatch(matchID, "stopped") {
		return fmt.Errorf("%w: match %q", world.ErrNotFound, matchID)
	}
	return nil
}

func (g *Gateway) removeMatch(matchID, reason string) bool {
	g.mu.Lock()
	m, ok := g.matches[matchID]
	if ok {
		delete(g.matches, matchID)
		for conn, ids := range g.subscriptions {
			if remaining := removeID(ids, matchID); len(remaining) == 0 {
				delete(g.subscriptions, conn)
			} else {
				g.subscriptions[conn] = remaining
			}
		}
	}
	active := len(g.matches)
	g.mu.Unlock()
	if !ok {
		return false
	}

	m.stop()
	g.metrics.Store(telemetry.MetricActiveMatches, uint64(active))
	turn := m.engine.Snapshot().TurnNumber
	loggingmatch.Stopped(context.Background(), g.cfg.Publisher, matchID, uint64(turn), loggingmatch.StoppedPayload{Reason: reason})
	return true
}

// Snapshot returns a copy of one match's state.
func (g *Gateway) Snapshot(matchID string) (world.GameState, error) {
	m, err := g.lookup(matchID)
	if err != nil {
		return world.GameState{}, err
	}
	return m.engine.Snapshot(), nil
}

// Matches summarises every registered match, oldest first.
func (g *Gateway) Matches() []MatchSummary {
	g.mu.Lock()
	matches := make([]*Match, 0, len(g.matches))
	for _, m := range g.matches {
		matches = append(matches, m)
	}
	g.mu.Unlock()

	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// TelemetrySnapshot exposes the gateway counters for diagnostics.
func (g *Gateway) TelemetrySnapshot() map[string]uint64 {
	return g.cfg.Metrics.Snapshot()
}

// Close stops every match and waits for their loops to exit or ctx to end.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	ids := make([]string, 0, len(g.matches))
	for id := range g.matches {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.removeMatch(id, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func connID(conn Connection) string {
	if named, ok := conn.(interface{ ID() string }); ok {
		return named.ID()
	}
	return fmt.Sprintf("%p", conn)
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
