// Package websocket wraps gorilla/websocket with the small duplex surface the
// bridge client needs: dial, a blocking read loop, serialized writes and an
// idempotent close.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bhandras/delight/watch/internal/version"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by writes on a closed connection.
var ErrClosed = errors.New("websocket: connection closed")

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	closeGrace       = time.Second
)

// Conn is a single client connection to the bridge.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a connection to url. The context bounds the handshake only.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws, closed: make(chan struct{})}, nil
}

// ReadLoop blocks delivering every text frame to onFrame until the
// connection fails or is closed. It returns nil when the peer or Close ended
// the connection normally.
func (c *Conn) ReadLoop(onFrame func([]byte)) error {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		onFrame(data)
	}
}

// WriteText sends one text frame. Concurrent writers are serialized.
func (c *Conn) WriteText(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close sends a close frame on a best-effort basis and tears the socket
// down. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		// WriteControl may run concurrently with WriteMessage, so a stalled
		// WriteText does not hold up Close.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))

		err = c.ws.Close()
	})
	return err
}
