// Package config resolves process settings from optional .env files and the
// environment. Invalid values are reported and the default is kept.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	server "puppet-arena/server"
	"puppet-arena/server/internal/sim"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/internal/world"
	"puppet-arena/server/logging"
)

// DefaultEnvFiles are loaded, when present, before the environment is read.
// Variables already set in the environment win.
var DefaultEnvFiles = []string{".env", "secrets.env"}

type Config struct {
	Addr        string
	ClientDir   string
	EnablePprof bool
	AvatarURL   string

	Gateway server.GatewayConfig
	Logging logging.Config
}

func Default() Config {
	return Config{
		Addr:    ":8080",
		Gateway: server.DefaultGatewayConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// LoadEnvFiles loads each existing file into the process environment and
// returns the ones that were read.
func LoadEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// Load reads the default env files, then the environment.
func Load(logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.Discard()
	}
	loaded, err := LoadEnvFiles(DefaultEnvFiles...)
	if err != nil {
		logger.Printf("failed to load env file: %v", err)
	}
	for _, path := range loaded {
		logger.Printf("loaded environment from %s", path)
	}
	return FromEnv(os.Getenv, logger)
}

// FromEnv resolves the configuration through getenv.
func FromEnv(getenv func(string) string, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.Discard()
	}
	r := reader{getenv: getenv, logger: logger}
	cfg := Default()

	r.setString("ADDR", &cfg.Addr)
	r.setString("CLIENT_DIR", &cfg.ClientDir)
	r.setBool("ENABLE_PPROF", &cfg.EnablePprof)
	r.setString("AVATAR_PLACEHOLDER_URL", &cfg.AvatarURL)

	gw := &cfg.Gateway
	r.setDuration("TICK_INTERVAL", &gw.TickInterval)
	r.setDuration("COMPLETED_RETENTION", &gw.CompletedRetention)
	if raw := getenv("RECONCILE_MODE"); raw != "" {
		if mode, ok := world.ParseReconcileMode(raw); ok {
			gw.ReconcileMode = mode
		} else {
			logger.Printf("invalid RECONCILE_MODE=%q: want %s or %s", raw, world.ReconcileAuthoritative, world.ReconcileAdvisory)
		}
	}
	r.engine(&gw.Engine)

	logCfg := &cfg.Logging
	if raw := getenv("LOG_SINKS"); raw != "" {
		var sinks []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				sinks = append(sinks, name)
			}
		}
		logCfg.EnabledSinks = sinks
	}
	r.setString("LOG_JSON_PATH", &logCfg.JSON.FilePath)
	if logCfg.JSON.FilePath != "" && !logCfg.HasSink("json") {
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
	}
	if raw := getenv("LOG_LEVEL"); raw != "" {
		if severity, ok := logging.ParseSeverity(strings.ToLower(strings.TrimSpace(raw))); ok {
			logCfg.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_LEVEL=%q", raw)
		}
	}
	r.setInt("LOG_BUFFER_SIZE", &logCfg.BufferSize)
	r.setDuration("LOG_FLUSH_INTERVAL", &logCfg.JSON.FlushInterval)
	return cfg
}

func (r reader) engine(cfg *sim.Config) {
	r.setDuration("AGENT_TIMEOUT", &cfg.AgentTimeout)
	r.setFloat("KILL_RANGE", &cfg.KillRange)
	r.setFloat("MAX_MOVE_DISTANCE", &cfg.MaxMoveDistance)
	r.setBool("CLAMP_TO_BOUNDS", &cfg.ClampToBounds)
	r.setFloat("PERCEPTION_RADIUS", &cfg.PerceptionRadius)
	r.setInt("MESSAGE_HISTORY", &cfg.MessageHistory)
	r.setInt("MAX_CONCURRENT_AGENTS", &cfg.MaxConcurrentAgents)
}

type reader struct {
	getenv func(string) string
	logger telemetry.Logger
}

func (r reader) setString(key string, dst *string) {
	if raw := strings.TrimSpace(r.getenv(key)); raw != "" {
		*dst = raw
	}
}

func (r reader) setBool(key string, dst *bool) {
	raw := r.getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		r.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func (r reader) setInt(key string, dst *int) {
	raw := r.getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		r.logger.Printf("invalid %s=%q: want a non-negative integer", key, raw)
		return
	}
	*dst = value
}

func (r reader) setFloat(key string, dst *float64) {
	raw := r.getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		r.logger.Printf("invalid %s=%q: want a non-negative number", key, raw)
		return
	}
	*dst = value
}

// duration accepts Go durations ("1500ms") or a bare number of milliseconds.
func (r reader) setDuration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		r.logger.Printf("invalid %s=%q: want a positive duration", key, raw)
		return
	}
	*dst = value
}
