// Package ws owns the single bidirectional websocket connection to a live
// session endpoint. It carries no business logic: connect, send, receive,
// report closure.
package ws

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-host/internal/domain"
	"quiz-session-host/internal/protocol"
)

const handlePath = "/api/v1/sessions/handle/id/"

// Channel is one connection to one session. Dial is idempotent while the
// connection is open, so re-running UI effects cannot create duplicate
// sockets for the same session.
type Channel struct {
	url      string
	hostName string
	dialer   *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	onMessage func([]byte)
	onClose   func(error)
	localBye  bool

	writeMu sync.Mutex
}

// NewChannel addresses the session endpoint under the transport base URL,
// e.g. ws://host + /api/v1/sessions/handle/id/{sessionID}. hostName is the
// display name announced in the join message sent on open.
func NewChannel(baseURL, sessionID, hostName string) *Channel {
	return &Channel{
		url:      strings.TrimRight(baseURL, "/") + handlePath + sessionID,
		hostName: hostName,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// OnMessage registers the raw-frame callback. Register before Dial.
func (c *Channel) OnMessage(fn func(raw []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnClose registers the closure callback. It fires once per connection and
// only for remote or error closes, never for a local Close.
func (c *Channel) OnClose(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Dial connects and immediately announces the host join. Calling Dial while
// the connection is open is a no-op; after a close it dials again, which is
// what the reconnect path relies on.
func (c *Channel) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.localBye = false
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	join, err := protocol.EncodeJoin(c.hostName)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		conn.Close()
		return fmt.Errorf("join announcement: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost a dial race; keep the existing connection.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Send writes one raw frame. Gorilla connections allow a single concurrent
// writer, so writes are serialized here.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return domain.ErrChannelClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// IsOpen reports whether the connection is currently up.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears the connection down without firing OnClose.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.localBye = true
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			local := c.localBye
			if c.conn == conn {
				c.conn = nil
			}
			onClose := c.onClose
			c.mu.Unlock()
			if !local && onClose != nil {
				onClose(err)
			}
			return
		}

		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}
