package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"testing"
	"time"

	"puppet-arena/server/logging"
	"puppet-arena/server/logging/sinks"
)

func fixedClock() logging.Clock {
	return logging.ClockFunc(func() time.Time {
		return time.Date(2025, 4, 12, 22, 0, 0, 0, time.UTC)
	})
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close router: %v", err)
	}
}

func TestRouterDeliversToSinks(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"service": "arena"}
	router := logging.NewRouter(fixedClock(), cfg, log.New(&bytes.Buffer{}, "", 0), []logging.NamedSink{{Name: "memory", Sink: memory}})

	pub := logging.ForMatch(router, "match-1")
	pub.Publish(context.Background(), logging.Event{Type: "match.started", Severity: logging.SeverityInfo})
	pub.Publish(context.Background(), logging.Event{Type: "match.debug", Severity: logging.SeverityDebug})
	pub.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event after severity filtering, got %d", len(events))
	}
	event := events[0]
	if event.Match != "match-1" {
		t.Fatalf("expected match id to be stamped, got %q", event.Match)
	}
	if event.Time.IsZero() {
		t.Fatalf("expected router clock to stamp the event time")
	}
	if event.Extra["service"] != "arena" {
		t.Fatalf("expected static fields to be merged, got %v", event.Extra)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 event counted, got %d", stats.EventsTotal)
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected named sink lookup to return the memory sink")
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemorySink()
	router := logging.NewRouter(fixedClock(), logging.DefaultConfig(), log.New(&bytes.Buffer{}, "", 0), []logging.NamedSink{{Name: "memory", Sink: memory}})
	closeRouter(t, router)

	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityInfo})
	if len(memory.Events()) != 0 {
		t.Fatalf("expected no events after close")
	}
}

func TestJSONSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := sinks.NewJSON(&buf, 0)
	err := sink.Write(logging.Event{
		Type:     "combat.elimination",
		Tick:     4,
		Time:     time.Date(2025, 4, 12, 22, 0, 0, 0, time.UTC),
		Match:    "match-1",
		Actor:    logging.PuppetRef("puppet-1"),
		Targets:  []logging.EntityRef{logging.PuppetRef("puppet-2")},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  map[string]any{"distance": 0.5},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if line["type"] != "combat.elimination" || line["match"] != "match-1" || line["severity"] != "info" {
		t.Fatalf("unexpected line %v", line)
	}
	if turn, _ := line["turn"].(float64); turn != 4 {
		t.Fatalf("expected turn 4, got %v", line["turn"])
	}
}

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := sinks.NewConsoleSink(&buf)
	sink.Write(logging.Event{
		Type:     "combat.elimination",
		Tick:     2,
		Match:    "match-1",
		Actor:    logging.PuppetRef("puppet-1"),
		Targets:  []logging.EntityRef{logging.PuppetRef("puppet-2")},
		Severity: logging.SeverityInfo,
	})
	out := buf.String()
	for _, want := range []string{"[combat.elimination]", "match=match-1", "turn=2", "actor=puppet:puppet-1", "targets=puppet:puppet-2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
