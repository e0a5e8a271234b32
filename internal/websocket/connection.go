package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = int64(8192)
)

// Connection represents a single WebSocket connection to a client. It is
// owned by the registry entry of the room it last joined. Outbound frames go
// through a buffered channel so broadcasts never block on a slow peer;
// per-connection delivery stays FIFO because one write pump drains the
// channel in order.
type Connection struct {
	id string
	ws *websocket.Conn

	send chan interface{}
	done chan struct{}

	// UserID and Username are learned from the client's frames; zero until
	// the first join/typing/chat carrying a user identity.
	UserID   int64
	Username string

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan interface{}, 256),
		done: make(chan struct{}),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Alive reports whether the connection is still open.
func (c *Connection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Send enqueues a frame for delivery. It reports false when the connection is
// closed or its buffer is full, signalling the caller to prune it.
func (c *Connection) Send(v interface{}) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

// Close marks the connection dead and closes the underlying socket. Safe to
// call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.ws.Close()
	})
}

// ReadPump reads raw frames off the socket, handing each to handle. It
// returns once the socket errors or closes, calling onClose exactly once.
func (c *Connection) ReadPump(handle func(raw []byte), onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}

// WritePump drains the send channel onto the socket and keeps the peer alive
// with periodic pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
