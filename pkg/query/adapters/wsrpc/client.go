package wsrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn}
}

func (c *client) close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *client) send(ctx context.Context, req *request) (*response, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("bridge connection unavailable")
	}
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := applyDeadline(c.conn, ctx); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		// Frames with a foreign or missing id are unsolicited events.
		if resp.ID != req.ID {
			continue
		}
		return &resp, nil
	}
}

func applyDeadline(conn *websocket.Conn, ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	return conn.SetWriteDeadline(deadline)
}
