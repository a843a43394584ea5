package ws

import (
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"puppet-arena/server"
	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/logging"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = 25 * time.Second
	defaultReadLimit    = 1 << 20
)

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher

	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	ReadLimit    int64
}

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	gateway  *server.Gateway
	cfg      HandlerConfig
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewHandler(gateway *server.Gateway, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		gateway:  gateway,
		cfg:      cfg,
		logger:   cfg.Logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	id := connectionID(h.nextID.Add(1))
	publisher := logging.WithFields(h.cfg.Publisher, map[string]any{"remoteAddr": r.RemoteAddr})
	s := newSession(h, newConnection(id, conn, h.cfg.WriteWait), publisher)
	s.serve(r.Context())
}
