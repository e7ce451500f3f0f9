package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studybuddy-chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is one live socket. The user is attached once at handshake and
// never re-validated while the socket stays open.
type Client struct {
	id   string
	user *models.User
	info ConnInfo
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient builds a client with an outbound queue of the given size. conn
// may be nil for clients that are never pumped.
func NewClient(id string, user *models.User, info ConnInfo, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		id:   id,
		user: user,
		info: info,
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// ID returns the socket id.
func (c *Client) ID() string { return c.id }

// User returns the authenticated user, or nil.
func (c *Client) User() *models.User { return c.user }

// Send exposes the outbound queue; it is closed when the client is unregistered.
func (c *Client) Send() <-chan []byte { return c.send }

// enqueue adds a frame without blocking. It reports false when the queue is
// full or already closed.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump feeds inbound frames to handle until the socket fails or the peer
// stops answering pings.
func (c *Client) readPump(handle func(raw []byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(raw)
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
