package server

import (
	"context"
	"io"
	"sync"
	"time"

	"puppet-arena/server/internal/sim"
)

// Match is one running game: its engine, the agents' resources and the
// connections receiving its broadcasts.
type Match struct {
	id        string
	engine    *sim.Engine
	closers   []io.Closer
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	subscriberSet map[Connection]struct{}
	completedAt   time.Time
	expiry        *time.Timer
	stopOnce      sync.Once
}

// MatchSummary is the diagnostics view of a match.
type MatchSummary struct {
	ID          string `json:"id"`
	Phase       string `json:"phase"`
	Turn        int    `json:"turn"`
	Puppets     int    `json:"puppets"`
	Living      int    `json:"living"`
	Winner      string `json:"winner,omitempty"`
	Subscribers int    `json:"subscribers"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
}

func newMatch(id string, engine *sim.Engine, closers []io.Closer, now time.Time) *Match {
	ctx, cancel := context.WithCancel(context.Background())
	return &Match{
		id:            id,
		engine:        engine,
		closers:       closers,
		createdAt:     now,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		subscriberSet: make(map[Connection]struct{}),
	}
}

func (m *Match) ID() string { return m.id }

func (m *Match) addSubscriber(conn Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriberSet[conn] = struct{}{}
}

func (m *Match) removeSubscriber(conn Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriberSet, conn)
}

func (m *Match) subscribers() []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Connection, 0, len(m.subscriberSet))
	for conn := range m.subscriberSet {
		out = append(out, conn)
	}
	return out
}

func (m *Match) markCompleted(at time.Time, expiry *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedAt = at
	m.expiry = expiry
}

// stop cancels the tick loop and releases agent resources. Safe to call more
// than once.
func (m *Match) stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.mu.Lock()
		if m.expiry != nil {
			m.expiry.Stop()
		}
		m.subscriberSet = make(map[Connection]struct{})
		m.mu.Unlock()
		closeAll(m.closers)
	})
}

func (m *Match) summary() MatchSummary {
	snapshot := m.engine.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := MatchSummary{
		ID:          m.id,
		Phase:       m.engine.Phase().String(),
		Turn:        snapshot.TurnNumber,
		Puppets:     len(snapshot.Puppets),
		Living:      snapshot.LivingCount(),
		Winner:      snapshot.Winner,
		Subscribers: len(m.subscriberSet),
		CreatedAt:   m.createdAt.UnixMilli(),
	}
	if !m.completedAt.IsZero() {
		summary.CompletedAt = m.completedAt.UnixMilli()
	}
	return summary
}
