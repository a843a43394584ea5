package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	server "puppet-arena/server"
	"puppet-arena/server/internal/avatar"
	"puppet-arena/server/internal/config"
	servernet "puppet-arena/server/internal/net"
	"puppet-arena/server/internal/observability"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/logging"
	loggingSinks "puppet-arena/server/logging/sinks"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Logger telemetry.Logger
	// Settings overrides the environment when set.
	Settings *config.Config
}

// Run serves until ctx is cancelled or the listener fails, then shuts the
// HTTP server, the gateway and the logging router down in that order.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
	} else {
		settings = config.Load(telemetryLogger)
	}

	if settings.ClientDir == "" {
		if dir, err := config.ResolveClientDir(); err == nil {
			settings.ClientDir = dir
		} else {
			telemetryLogger.Printf("client assets disabled: %v", err)
		}
	}

	sinks, err := buildSinks(settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	router := logging.NewRouter(logging.ClockFunc(time.Now), settings.Logging, fallbackLogger, sinks)

	metrics := &logging.Metrics{}
	avatars := avatar.Placeholder{URL: settings.AvatarURL}

	gatewayCfg := settings.Gateway
	gatewayCfg.Logger = telemetryLogger
	gatewayCfg.Publisher = router
	gatewayCfg.Metrics = metrics
	gatewayCfg.Avatars = avatars
	gateway := server.NewGateway(gatewayCfg)

	handler := servernet.NewHTTPHandler(gateway, servernet.HTTPHandlerConfig{
		ClientDir:     settings.ClientDir,
		Logger:        telemetryLogger,
		Publisher:     router,
		Avatars:       avatars,
		Observability: observability.Config{EnablePprof: settings.EnablePprof},
		RouterStats:   router.Stats,
	})

	srv := &http.Server{Addr: settings.Addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s (tick=%s reconcile=%s)", srv.Addr, gatewayCfg.TickInterval, gatewayCfg.ReconcileMode)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		telemetryLogger.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	if err := gateway.Close(shutdownCtx); err != nil {
		telemetryLogger.Printf("gateway shutdown: %v", err)
	}
	if err := router.Close(shutdownCtx); err != nil {
		telemetryLogger.Printf("failed to close logging router: %v", err)
	}
	return runErr
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)})
	}
	if cfg.HasSink("json") && cfg.JSON.FilePath != "" {
		file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval)})
	}
	if cfg.HasSink("memory") {
		sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewMemorySink()})
	}
	return sinks, nil
}
