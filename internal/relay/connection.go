package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one live client transport session. The identifier is
// process-local and unique for the process lifetime. The bound user identity
// is absent until authentication succeeds and is set at most once, before
// the connection is attached to the registry.
//
// All outbound frames flow through a single writer goroutine; WriteJSON is
// safe for concurrent callers.
type Connection struct {
	id            string
	conn          *websocket.Conn
	writeCh       chan []byte
	writeTimeout  time.Duration
	userID        int64
	authenticated bool
	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	mu            sync.RWMutex
}

// NewConnection wraps a freshly accepted transport connection. The identity
// is unbound; callers authenticate first, then Bind and attach.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer for the underlying transport. The write
// channel is never closed; shutdown is signaled through the context.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues an envelope for delivery to this client.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// NotifyClose sends a final notice directly on the transport and tears the
// connection down. Used for pre-attach rejection, where the write queue has
// never been used; writing directly guarantees the notice is flushed before
// the close.
func (c *Connection) NotifyClose(v interface{}) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_ = c.conn.WriteJSON(v)
	_ = c.Close()
}

// Close cancels outstanding work tied to the connection and closes the
// transport. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Bind attaches a user identity to the connection after authentication.
func (c *Connection) Bind(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userID = userID
	c.authenticated = true
}

// UserID returns the bound identity, if authentication has succeeded.
func (c *Connection) UserID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.authenticated
}

// ID returns the process-local connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Context is cancelled when the connection closes; application work tied to
// the connection should run under it.
func (c *Connection) Context() context.Context {
	return c.ctx
}
