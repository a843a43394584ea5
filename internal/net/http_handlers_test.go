package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"puppet-arena/server"
	"puppet-arena/server/internal/avatar"
	"puppet-arena/server/internal/observability"
	"puppet-arena/server/internal/world"
)

func newTestGateway(t *testing.T) *server.Gateway {
	t.Helper()
	cfg := server.DefaultGatewayConfig()
	cfg.TickInterval = time.Hour
	gateway := server.NewGateway(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		gateway.Close(ctx)
	})
	return gateway
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	handler := NewHTTPHandler(newTestGateway(t), HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsListsMatches(t *testing.T) {
	gateway := newTestGateway(t)
	id, err := gateway.StartMatch(context.Background(), world.MatchConfig{Puppets: []world.PuppetConfig{{Type: "idle"}, {Type: "idle"}}})
	if err != nil {
		t.Fatalf("start match: %v", err)
	}

	handler := NewHTTPHandler(gateway, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	payload := decodeBody(t, resp)
	matches, ok := payload["matches"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("expected one match, got %v", payload["matches"])
	}
	match := matches[0].(map[string]any)
	if match["id"] != id {
		t.Fatalf("expected match %s, got %v", id, match["id"])
	}
	if living, _ := match["living"].(float64); living != 2 {
		t.Fatalf("expected 2 living puppets, got %v", match["living"])
	}
	telemetry, ok := payload["telemetry"].(map[string]any)
	if !ok {
		t.Fatalf("expected telemetry object, got %T", payload["telemetry"])
	}
	if active, _ := telemetry["active_matches"].(float64); active != 1 {
		t.Fatalf("expected active_matches=1, got %v", telemetry["active_matches"])
	}
}

func TestProtocolSchema(t *testing.T) {
	handler := NewHTTPHandler(newTestGateway(t), HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/protocol/schema", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	payload := decodeBody(t, resp)
	if _, ok := payload["oneOf"].([]any); !ok {
		t.Fatalf("expected oneOf in schema, got %v", payload)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/protocol/schema", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestGenerateAvatar(t *testing.T) {
	var received string
	generator := avatar.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		received = prompt
		if prompt == avatar.Enhance("explode") {
			return "", errors.New("backend down")
		}
		return "https://img.example/a.png", nil
	})
	handler := NewHTTPHandler(newTestGateway(t), HTTPHandlerConfig{Avatars: generator})

	tests := []struct {
		name   string
		method string
		body   string
		status int
		field  string
		want   string
	}{
		{name: "success", method: http.MethodPost, body: `{"prompt":"a green puppet"}`, status: http.StatusOK, field: "url", want: "https://img.example/a.png"},
		{name: "missing prompt", method: http.MethodPost, body: `{}`, status: http.StatusBadRequest, field: "error", want: "Prompt is required"},
		{name: "malformed", method: http.MethodPost, body: `{"prompt":`, status: http.StatusBadRequest, field: "error", want: "invalid payload"},
		{name: "generator failure", method: http.MethodPost, body: `{"prompt":"explode"}`, status: http.StatusInternalServerError, field: "error", want: "Failed to generate avatar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/generate-avatar", bytes.NewReader([]byte(tt.body)))
			handler.ServeHTTP(resp, req)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
			payload := decodeBody(t, resp)
			if payload[tt.field] != tt.want {
				t.Fatalf("expected %s=%q, got %v", tt.field, tt.want, payload[tt.field])
			}
		})
	}
	if received != avatar.Enhance("explode") {
		t.Fatalf("expected generator to receive the enhanced prompt, got %q", received)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/generate-avatar", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestPprofIsOptIn(t *testing.T) {
	gateway := newTestGateway(t)

	resp := httptest.NewRecorder()
	NewHTTPHandler(gateway, HTTPHandlerConfig{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled by default, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	enabled := NewHTTPHandler(gateway, HTTPHandlerConfig{Observability: observability.Config{EnablePprof: true}})
	enabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", resp.Code)
	}
}
