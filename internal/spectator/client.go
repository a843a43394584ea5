// Package spectator is a terminal client that starts or follows a match over
// the WebSocket protocol and renders the broadcast state.
package spectator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/internal/world"
)

// Frame is any server message. Fields not carried by Type are zero.
type Frame struct {
	Type    string           `json:"type"`
	GameID  string           `json:"gameId,omitempty"`
	Message string           `json:"message,omitempty"`
	Code    string           `json:"code,omitempty"`
	State   *world.GameState `json:"state,omitempty"`
}

// Client is a WebSocket connection to the arena server. Frames are delivered
// on the channel returned by Frames until the connection ends.
type Client struct {
	conn   *websocket.Conn
	frames chan Frame
	errs   chan error

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:   conn,
		frames: make(chan Frame, 16),
		errs:   make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.errs <- err
			return
		}
		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			frame = Frame{Type: proto.TypeError, Code: proto.CodeProtocol, Message: fmt.Sprintf("undecodable frame: %v", err)}
		}
		c.frames <- frame
	}
}

func (c *Client) Frames() <-chan Frame { return c.frames }

// Err reports why the frame channel closed.
func (c *Client) Err() error {
	select {
	case err := <-c.errs:
		return err
	default:
		return nil
	}
}

func (c *Client) StartGame(cfg world.MatchConfig) error {
	return c.write(proto.StartGame{Type: proto.TypeStartGame, Config: cfg})
}

func (c *Client) Subscribe(gameID string) error {
	return c.write(proto.Subscribe{Type: proto.TypeSubscribe, GameID: gameID})
}

func (c *Client) Unsubscribe() error {
	return c.write(proto.Unsubscribe{Type: proto.TypeUnsubscribe})
}

// ReportState sends a client-observed partial state for reconciliation.
func (c *Client) ReportState(gameID string, partial world.PartialState) error {
	return c.write(proto.ClientStateUpdate{Type: proto.TypeStateUpdate, GameID: gameID, State: partial})
}

func (c *Client) write(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
