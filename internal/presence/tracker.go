// Package presence tracks which live sockets belong to which users and which
// group rooms they are subscribed to. It holds transport state only; durable
// group membership lives in the database.
package presence

import (
	"sort"
	"sync"
)

// Tracker maintains the user->socket binding and group->socket-set rooms.
// A Tracker is safe for concurrent use. Construct one per process and share it.
type Tracker struct {
	mu          sync.RWMutex
	userSockets map[string]string
	rooms       map[string]map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		userSockets: make(map[string]string),
		rooms:       make(map[string]map[string]struct{}),
	}
}

// Bind records socketID as the user's active socket, replacing any previous one.
func (t *Tracker) Bind(userID, socketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userSockets[userID] = socketID
}

// Unbind removes the user's socket binding.
func (t *Tracker) Unbind(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.userSockets, userID)
}

// SocketFor returns the socket currently bound to the user.
func (t *Tracker) SocketFor(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	socketID, ok := t.userSockets[userID]
	return socketID, ok
}

// JoinRoom subscribes a socket to a group room, creating the room if needed.
func (t *Tracker) JoinRoom(groupID, socketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rooms[groupID]; !ok {
		t.rooms[groupID] = make(map[string]struct{})
	}
	t.rooms[groupID][socketID] = struct{}{}
}

// LeaveRoom unsubscribes a socket. Empty rooms are dropped.
func (t *Tracker) LeaveRoom(groupID, socketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(groupID, socketID)
}

func (t *Tracker) leaveLocked(groupID, socketID string) {
	sockets, ok := t.rooms[groupID]
	if !ok {
		return
	}
	delete(sockets, socketID)
	if len(sockets) == 0 {
		delete(t.rooms, groupID)
	}
}

// OnDisconnect removes the socket from every room and drops the user binding
// if it still points at this socket. It returns the rooms the socket was in.
func (t *Tracker) OnDisconnect(socketID, userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var left []string
	for groupID, sockets := range t.rooms {
		if _, ok := sockets[socketID]; ok {
			left = append(left, groupID)
			t.leaveLocked(groupID, socketID)
		}
	}
	if userID != "" && t.userSockets[userID] == socketID {
		delete(t.userSockets, userID)
	}
	sort.Strings(left)
	return left
}

// RoomSockets returns a snapshot of the sockets subscribed to a group.
func (t *Tracker) RoomSockets(groupID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sockets := t.rooms[groupID]
	out := make([]string, 0, len(sockets))
	for socketID := range sockets {
		out = append(out, socketID)
	}
	sort.Strings(out)
	return out
}

// RoomSize returns the number of sockets in a group room.
func (t *Tracker) RoomSize(groupID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[groupID])
}

// InRoom reports whether the socket is subscribed to the group.
func (t *Tracker) InRoom(groupID, socketID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[groupID][socketID]
	return ok
}

// Rooms returns the ids of all non-empty rooms.
func (t *Tracker) Rooms() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rooms))
	for groupID := range t.rooms {
		out = append(out, groupID)
	}
	sort.Strings(out)
	return out
}

// RoomsFor lists the rooms a socket is subscribed to.
func (t *Tracker) RoomsFor(socketID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for groupID, sockets := range t.rooms {
		if _, ok := sockets[socketID]; ok {
			out = append(out, groupID)
		}
	}
	sort.Strings(out)
	return out
}

// Stats summarises tracker state.
type Stats struct {
	BoundUsers int `json:"boundUsers"`
	Rooms      int `json:"rooms"`
}

// Stats returns counts of bound users and live rooms.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{BoundUsers: len(t.userSockets), Rooms: len(t.rooms)}
}
