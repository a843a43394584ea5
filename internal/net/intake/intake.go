// Package intake applies decoded client messages to the gateway on behalf of
// one connection.
package intake

import (
	"context"
	"fmt"

	"puppet-arena/server"
	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/internal/world"
)

// Gateway is the part of server.Gateway a session drives.
type Gateway interface {
	StartMatch(ctx context.Context, cfg world.MatchConfig) (string, error)
	Subscribe(ctx context.Context, matchID string, conn server.Connection) error
	Unsubscribe(conn server.Connection)
	ReportClientState(ctx context.Context, conn server.Connection, matchID string, partial world.PartialState) (world.ReconcileResult, error)
}

// Outcome describes what a staged message did.
type Outcome struct {
	MatchID   string
	Reconcile *world.ReconcileResult
}

// Stage applies msg, a value returned by proto.Decode. Errors are meant for
// the originating connection; a start_game reply that cannot be written is
// returned as is so the caller can drop the connection.
func Stage(ctx context.Context, gw Gateway, conn server.Connection, msg any) (Outcome, error) {
	switch m := msg.(type) {
	case *proto.StartGame:
		id, err := gw.StartMatch(ctx, m.Config)
		if err != nil {
			return Outcome{}, err
		}
		data, err := proto.EncodeGameStarted(id)
		if err != nil {
			return Outcome{MatchID: id}, err
		}
		if err := conn.Send(data); err != nil {
			return Outcome{MatchID: id}, err
		}
		return Outcome{MatchID: id}, gw.Subscribe(ctx, id, conn)
	case *proto.Subscribe:
		return Outcome{MatchID: m.GameID}, gw.Subscribe(ctx, m.GameID, conn)
	case *proto.Unsubscribe:
		gw.Unsubscribe(conn)
		return Outcome{}, nil
	case *proto.ClientStateUpdate:
		result, err := gw.ReportClientState(ctx, conn, m.GameID, m.State)
		return Outcome{MatchID: m.GameID, Reconcile: &result}, err
	default:
		return Outcome{}, fmt.Errorf("%w: unhandled message %T", world.ErrProtocol, msg)
	}
}

// MessageType names msg for logging.
func MessageType(msg any) string {
	switch m := msg.(type) {
	case *proto.StartGame:
		return m.Type
	case *proto.Subscribe:
		return m.Type
	case *proto.Unsubscribe:
		return m.Type
	case *proto.ClientStateUpdate:
		return m.Type
	}
	return ""
}
