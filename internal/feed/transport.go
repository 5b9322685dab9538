package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established connection to the feed. The production
// implementation wraps a websocket; tests inject scripted fakes so the
// reconnect state machine can be exercised without network I/O.
type Conn interface {
	// ReadMessage blocks until the next raw frame arrives.
	ReadMessage() ([]byte, error)

	// WriteJSON sends one JSON object to the feed.
	WriteJSON(v any) error

	// SetReadDeadline bounds the next read. The zero time clears it.
	SetReadDeadline(t time.Time) error

	// Close tears the connection down; a blocked ReadMessage returns.
	Close() error
}

// Transport opens connections to the feed.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketTransport dials the feed over a websocket.
type WebsocketTransport struct {
	url              string
	handshakeTimeout time.Duration
}

// NewWebsocketTransport creates a transport for the given feed URL (the API
// key is carried in the URL query).
func NewWebsocketTransport(url string, handshakeTimeout time.Duration) *WebsocketTransport {
	return &WebsocketTransport{
		url:              url,
		handshakeTimeout: handshakeTimeout,
	}
}

// Dial performs the websocket upgrade handshake.
func (t *WebsocketTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}

	// The feed batches very large payloads into single frames (tens of MiB
	// during the initial burst), so no read limit is set on the connection.
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla websocket connection to the Conn interface.
// Writes are serialized: subscription requests from the connect path and
// any future control traffic must not interleave on the wire.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
