package ws

import (
	"encoding/json"
	"log"
	"sync"

	"studybuddy-chat/internal/observability"
	"studybuddy-chat/internal/presence"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub owns the live clients of this process and delivers events to the
// sockets the presence tracker lists for a room.
type Hub struct {
	tracker    *presence.Tracker
	clients    map[string]*Client
	sendBuffer int
	mu         sync.RWMutex
}

// NewHub creates an empty hub over the given tracker. sendBuffer is the
// per-client outbound queue length.
func NewHub(tracker *presence.Tracker, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		tracker:    tracker,
		clients:    make(map[string]*Client),
		sendBuffer: sendBuffer,
	}
}

// Tracker returns the presence tracker backing the hub.
func (h *Hub) Tracker() *presence.Tracker {
	return h.tracker
}

// Register tracks a client and binds its user to it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	if c.user != nil {
		h.tracker.Bind(c.user.ID, c.id)
	}
}

// Unregister is the disconnect cleanup path: the client leaves every room,
// its binding is dropped and its queue closed. Safe to call more than once.
func (h *Hub) Unregister(c *Client) []string {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if !ok {
		return nil
	}

	var userID string
	if c.user != nil {
		userID = c.user.ID
	}
	return h.tracker.OnDisconnect(c.id, userID)
}

// Client returns a registered client by socket id.
func (h *Hub) Client(socketID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[socketID]
	return c, ok
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// JoinRoom subscribes a socket to a group room.
func (h *Hub) JoinRoom(groupID, socketID string) {
	h.tracker.JoinRoom(groupID, socketID)
}

// LeaveRoom unsubscribes a socket from a group room.
func (h *Hub) LeaveRoom(groupID, socketID string) {
	h.tracker.LeaveRoom(groupID, socketID)
}

// EmitToRoom queues an event for every socket in the group's room, sender
// included. Delivery is best effort; it returns how many clients accepted it.
func (h *Hub) EmitToRoom(groupID, event string, payload any) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Printf("websocket encode error event=%s: %v", event, err)
		return 0
	}

	delivered := 0
	for _, socketID := range h.tracker.RoomSockets(groupID) {
		c, ok := h.Client(socketID)
		if !ok {
			continue
		}
		if c.enqueue(frame) {
			delivered++
			continue
		}
		observability.IncWSDropped()
		log.Printf("websocket queue full, dropping event=%s conn_id=%s group_id=%s", event, socketID, groupID)
	}
	return delivered
}

// Shutdown closes every client queue; their writers then close the sockets.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
