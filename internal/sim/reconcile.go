package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
)

// Reconcile folds a client-reported partial state into the match. It waits
// for any in-flight tick. Afterwards every living puppet's agent is notified
// with a fresh view.
func (e *Engine) Reconcile(ctx context.Context, partial world.PartialState, mode world.ReconcileMode) (world.ReconcileResult, error) {
	e.mu.Lock()
	result, err := world.Reconcile(e.state, partial, mode)
	e.deps.Metrics.Add(telemetry.MetricReconciliations, 1)
	if result.Applied && (len(result.Updated) > 0 || len(result.Inserted) > 0 || result.EnvironmentChanged) {
		e.state.RecordEvent(world.Event{
			Kind:      world.EventReconcile,
			Detail:    describeReconcile(result),
			Timestamp: e.nowMillis(),
		})
	}
	if e.phase == PhaseRunning && e.state.EvaluateCompletion(e.nowMillis()) {
		e.complete(ctx)
	}
	type notice struct {
		agent Agent
		view  world.WorldView
	}
	var notices []notice
	for _, p := range e.state.Living() {
		agent, ok := e.agents[p.ID]
		if !ok {
			continue
		}
		view, verr := world.BuildView(e.state, p.ID, e.viewOptions())
		if verr != nil {
			continue
		}
		notices = append(notices, notice{agent: agent, view: view})
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, n := range notices {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.notify(n.agent, n.view)
		}()
	}
	e.awaitNotices(ctx, &wg)
	return result, err
}

// awaitNotices waits for view notifications for at most one agent timeout.
// Agents still busy afterwards finish on their own goroutines.
func (e *Engine) awaitNotices(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(e.cfg.AgentTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		e.deps.Logger.Printf("[sim] match=%s view updates still running after %s", e.matchID, e.cfg.AgentTimeout)
	case <-ctx.Done():
	}
}

func (e *Engine) notify(agent Agent, view world.WorldView) {
	defer func() {
		if r := recover(); r != nil {
			e.deps.Logger.Printf("[sim] match=%s puppet=%s view update panicked: %v", e.matchID, view.Self.ID, r)
		}
	}()
	agent.UpdateView(view)
}

func describeReconcile(r world.ReconcileResult) string {
	parts := make([]string, 0, 3)
	if len(r.Updated) > 0 {
		parts = append(parts, fmt.Sprintf("updated=%s", strings.Join(r.Updated, ",")))
	}
	if len(r.Inserted) > 0 {
		parts = append(parts, fmt.Sprintf("inserted=%s", strings.Join(r.Inserted, ",")))
	}
	if r.EnvironmentChanged {
		parts = append(parts, "environment")
	}
	return strings.Join(parts, " ")
}
