package ws

import (
	"context"
	"errors"
	"time"

	"puppet-arena/server/internal/net/intake"
	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/logging"
	loggingnetwork "puppet-arena/server/logging/network"
)

// session runs the read loop for one socket and dispatches decoded messages
// to the gateway. Errors caused by a message are reported back on the same
// connection and never end the session.
type session struct {
	h         *Handler
	conn      *connection
	publisher logging.Publisher
}

func newSession(h *Handler, conn *connection, publisher logging.Publisher) *session {
	return &session{h: h, conn: conn, publisher: publisher}
}

func (s *session) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		s.h.gateway.Unsubscribe(s.conn)
		s.conn.Close()
	}()

	raw := s.conn.conn
	raw.SetReadLimit(s.h.cfg.ReadLimit)
	raw.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	})

	go s.keepalive(ctx)

	for {
		_, payload, err := raw.ReadMessage()
		if err != nil {
			return
		}
		raw.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
		if !s.dispatch(ctx, payload) {
			return
		}
	}
}

func (s *session) keepalive(ctx context.Context) {
	ticker := time.NewTicker(s.h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.ping(); err != nil {
				return
			}
		}
	}
}

// dispatch handles one inbound frame. It returns false when the connection
// can no longer be written to.
func (s *session) dispatch(ctx context.Context, payload []byte) bool {
	msg, err := proto.Decode(payload)
	if err != nil {
		return s.fail(ctx, "", err)
	}
	out, err := intake.Stage(ctx, s.h.gateway, s.conn, msg)
	if err != nil {
		return s.fail(ctx, intake.MessageType(msg), err)
	}
	switch {
	case out.Reconcile != nil && out.Reconcile.Rejected > 0:
		s.h.logger.Printf("[ws] %s state report rejected %d entries", s.conn.ID(), out.Reconcile.Rejected)
	case intake.MessageType(msg) == proto.TypeStartGame:
		s.h.logger.Printf("[ws] %s started match %s", s.conn.ID(), out.MatchID)
	}
	return true
}

// fail reports err to the client as an error message.
func (s *session) fail(ctx context.Context, messageType string, err error) bool {
	wire := proto.ErrorFor(err)
	loggingnetwork.ProtocolError(ctx, s.publisher, s.conn.ID(), loggingnetwork.ProtocolErrorPayload{
		MessageType: messageType,
		Code:        wire.Code,
		Error:       err.Error(),
	})
	if wire.Code == proto.CodeInternal && !errors.Is(err, context.Canceled) {
		s.h.logger.Printf("[ws] %s internal error handling %q: %v", s.conn.ID(), messageType, err)
	}
	data, encErr := proto.EncodeError(err)
	if encErr != nil {
		s.h.logger.Printf("[ws] failed to encode error for %s: %v", s.conn.ID(), encErr)
		return true
	}
	return s.conn.Send(data) == nil
}
