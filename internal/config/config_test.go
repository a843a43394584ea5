package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	"puppet-arena/server/logging"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envMap(nil), nil)
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Gateway.TickInterval != 2*time.Second {
		t.Fatalf("expected 2s tick interval, got %s", cfg.Gateway.TickInterval)
	}
	if cfg.Gateway.ReconcileMode != world.ReconcileAuthoritative {
		t.Fatalf("expected authoritative reconcile mode, got %q", cfg.Gateway.ReconcileMode)
	}
	if !cfg.Logging.HasSink("console") {
		t.Fatalf("expected console sink by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"ADDR":                  ":9000",
		"TICK_INTERVAL":         "500ms",
		"COMPLETED_RETENTION":   "60000",
		"AGENT_TIMEOUT":         "3s",
		"KILL_RANGE":            "2.5",
		"MAX_MOVE_DISTANCE":     "4",
		"PERCEPTION_RADIUS":     "25",
		"MAX_CONCURRENT_AGENTS": "8",
		"RECONCILE_MODE":        "Advisory",
		"LOG_SINKS":             "console, memory",
		"LOG_JSON_PATH":         "/tmp/events.jsonl",
		"LOG_LEVEL":             "WARN",
		"LOG_FLUSH_INTERVAL":    "250ms",
		"ENABLE_PPROF":          "true",
	}), nil)

	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.Gateway.TickInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms tick interval, got %s", cfg.Gateway.TickInterval)
	}
	if cfg.Gateway.CompletedRetention != time.Minute {
		t.Fatalf("expected bare milliseconds to parse, got %s", cfg.Gateway.CompletedRetention)
	}
	engine := cfg.Gateway.Engine
	if engine.AgentTimeout != 3*time.Second || engine.KillRange != 2.5 || engine.MaxMoveDistance != 4 {
		t.Fatalf("unexpected engine config %+v", engine)
	}
	if engine.PerceptionRadius != 25 || engine.MaxConcurrentAgents != 8 {
		t.Fatalf("unexpected engine limits %+v", engine)
	}
	if cfg.Gateway.ReconcileMode != world.ReconcileAdvisory {
		t.Fatalf("expected advisory mode, got %q", cfg.Gateway.ReconcileMode)
	}
	if !cfg.Logging.HasSink("memory") || !cfg.Logging.HasSink("json") {
		t.Fatalf("expected memory and json sinks, got %v", cfg.Logging.EnabledSinks)
	}
	if cfg.Logging.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("expected warn severity, got %v", cfg.Logging.MinimumSeverity)
	}
	if cfg.Logging.JSON.FlushInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms flush interval, got %s", cfg.Logging.JSON.FlushInterval)
	}
	if cfg.Logging.Fields["service"] != "puppet-arena" {
		t.Fatalf("expected service field on routed events, got %v", cfg.Logging.Fields)
	}
	if !cfg.EnablePprof {
		t.Fatalf("expected pprof to be enabled")
	}
}

func TestFromEnvKeepsDefaultsOnInvalidValues(t *testing.T) {
	var messages []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		messages = append(messages, format)
	})
	cfg := FromEnv(envMap(map[string]string{
		"TICK_INTERVAL":  "soon",
		"KILL_RANGE":     "-1",
		"RECONCILE_MODE": "democratic",
		"ENABLE_PPROF":   "maybe",
		"LOG_LEVEL":      "loud",
	}), logger)

	defaults := Default()
	if cfg.Gateway.TickInterval != defaults.Gateway.TickInterval {
		t.Fatalf("expected default tick interval, got %s", cfg.Gateway.TickInterval)
	}
	if cfg.Gateway.Engine.KillRange != defaults.Gateway.Engine.KillRange {
		t.Fatalf("expected default kill range, got %v", cfg.Gateway.Engine.KillRange)
	}
	if cfg.Gateway.ReconcileMode != world.ReconcileAuthoritative {
		t.Fatalf("expected default reconcile mode, got %q", cfg.Gateway.ReconcileMode)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", len(messages), messages)
	}
}

func TestLoadEnvFilesSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	if err := os.WriteFile(path, []byte("PUPPET_ARENA_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PUPPET_ARENA_TEST_KEY", "")
	os.Unsetenv("PUPPET_ARENA_TEST_KEY")

	loaded, err := LoadEnvFiles(filepath.Join(dir, ".env"), path)
	if err != nil {
		t.Fatalf("load env files: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != path {
		t.Fatalf("expected only %s to load, got %v", path, loaded)
	}
	if got := os.Getenv("PUPPET_ARENA_TEST_KEY"); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}
