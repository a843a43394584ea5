package net

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"puppet-arena/server"
	"puppet-arena/server/internal/avatar"
	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/internal/net/ws"
	"puppet-arena/server/internal/observability"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/logging"
)

const maxAvatarRequestBytes = 16 << 10

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        telemetry.Logger
	Publisher     logging.Publisher
	Avatars       avatar.Generator
	Observability observability.Config
	// RouterStats, when set, is reported on /diagnostics.
	RouterStats func() logging.RouterStats
}

func NewHTTPHandler(gateway *server.Gateway, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	avatars := cfg.Avatars
	if avatars == nil {
		avatars = avatar.Placeholder{}
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                `json:"status"`
			ServerTime int64                 `json:"serverTime"`
			Matches    []server.MatchSummary `json:"matches"`
			Telemetry  map[string]uint64     `json:"telemetry"`
			Logging    *logging.RouterStats  `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Matches:    gateway.Matches(),
			Telemetry:  gateway.TelemetrySnapshot(),
		}
		if cfg.RouterStats != nil {
			stats := cfg.RouterStats()
			payload.Logging = &stats
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, nethttp.StatusOK, proto.Schema())
	})

	mux.HandleFunc("/api/generate-avatar", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Prompt string `json:"prompt"`
		}
		defer r.Body.Close()
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxAvatarRequestBytes))
		if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, nethttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]string{"error": "Prompt is required"})
			return
		}

		url, err := avatars.Generate(r.Context(), avatar.Enhance(req.Prompt))
		if err != nil {
			logger.Printf("avatar generation failed: %v", err)
			writeJSON(w, nethttp.StatusInternalServerError, map[string]string{"error": "Failed to generate avatar"})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"url": url})
	})

	socket := ws.NewHandler(gateway, ws.HandlerConfig{Logger: logger, Publisher: cfg.Publisher})
	mux.HandleFunc("/ws", socket.Handle)

	cfg.Observability.Register(mux)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
