package broadcaster

import (
	"context"
	"sync"

	"github.com/taskfolio/realtime/internal/auth"
)

// Connection is one live websocket session. Outbound frames go through a
// bounded queue drained by the session's write pump, which is the only
// writer on the socket.
type Connection struct {
	Id string

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu             sync.RWMutex
	authentication *auth.Authentication
}

func NewConnection(id string, sendBuffer int) *Connection {
	return &Connection{
		Id:     id,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Enqueue offers a frame to the outbound queue without blocking. It reports
// false when the connection is closed or the queue is full.
func (c *Connection) Enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close marks the connection closed. Frames still queued are dropped.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

func (c *Connection) SetAuthentication(authentication *auth.Authentication) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.authentication = authentication
}

func (c *Connection) Authentication() *auth.Authentication {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.authentication
}

func (c *Connection) UserId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.authentication == nil {
		return ""
	}

	return c.authentication.Subject
}

func (c *Connection) IsAuthorized(projectId string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.authentication != nil && c.authentication.IsAuthorized(projectId)
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
