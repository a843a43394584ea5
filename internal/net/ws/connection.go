package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connection adapts a gorilla socket to server.Connection. Gorilla allows a
// single concurrent writer, so every write goes through mu.
type connection struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func connectionID(n uint64) string {
	return fmt.Sprintf("conn-%d", n)
}

func newConnection(id string, conn *websocket.Conn, writeWait time.Duration) *connection {
	return &connection{id: id, conn: conn, writeWait: writeWait}
}

func (c *connection) ID() string { return c.id }

func (c *connection) Send(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

func (c *connection) ping() error {
	return c.write(websocket.PingMessage, nil)
}

func (c *connection) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Close sends a close frame when possible and releases the socket.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.writeWait))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
