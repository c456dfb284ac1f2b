package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gyptix/observable-go/pkg/mutation"
)

// Client sends mutation batches to a bridge server. It stands in for the
// page script in tools and tests.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	format Format
}

// Dial connects to a bridge server at url (ws:// or wss://).
func Dial(ctx context.Context, url string, format Format) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", url, err)
	}
	return &Client{conn: conn, format: format}, nil
}

// Send encodes batch as one frame and writes it.
func (c *Client) Send(batch []mutation.Record) error {
	data, err := Encode(c.format, batch)
	if err != nil {
		return err
	}

	messageType := websocket.BinaryMessage
	if c.format == FormatJSON {
		messageType = websocket.TextMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
