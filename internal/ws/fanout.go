package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studybuddy-chat/internal/models"
	"studybuddy-chat/internal/observability"
	"studybuddy-chat/internal/repositories"
)

var (
	ErrNoUser         = errors.New("socket has no authenticated user")
	ErrEmptyMessage   = errors.New("empty message")
	ErrUnknownKind    = errors.New("unknown message type")
	ErrNotGroupMember = errors.New("not a group member")
)

const chatRoutingKey = "chat_events.message_sent"

type membershipFinder interface {
	FindMembership(ctx context.Context, groupID, userID string) (*models.GroupMember, error)
}

// SendMessageRequest is the send_message payload.
type SendMessageRequest struct {
	GroupID     string `json:"groupId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}

// Fanout persists chat messages and broadcasts them to the group's room.
type Fanout struct {
	hub      *Hub
	groups   membershipFinder
	messages repositories.GroupMessageRepository
	now      func() time.Time
}

// NewFanout constructs a Fanout.
func NewFanout(hub *Hub, groups membershipFinder, messages repositories.GroupMessageRepository) *Fanout {
	return &Fanout{hub: hub, groups: groups, messages: messages, now: time.Now}
}

// SendMessage handles send_message from a socket. Every error means nothing
// was persisted or broadcast; callers log it and tell the sender nothing.
func (f *Fanout) SendMessage(ctx context.Context, c *Client, req SendMessageRequest) (models.NewMessagePayload, error) {
	user := c.User()
	if user == nil {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, ErrNoUser
	}
	groupID, err := parseGroupID(req.GroupID)
	if err != nil {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, ErrEmptyMessage
	}
	kind, ok := models.ParseMessageKind(req.MessageType)
	if !ok {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, ErrUnknownKind
	}

	member, err := f.groups.FindMembership(ctx, groupID, user.ID)
	if err != nil {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		observability.IncMessage("rejected")
		return models.NewMessagePayload{}, ErrNotGroupMember
	}

	msg, err := f.messages.CreateMessage(ctx, groupID, user.ID, content, kind)
	if err != nil {
		observability.IncMessage("persist_failed")
		return models.NewMessagePayload{}, fmt.Errorf("persist message: %w", err)
	}

	return f.Broadcast(ctx, msg, *user), nil
}

// Broadcast shapes a persisted message and delivers it to the whole room,
// including the author's own socket.
func (f *Fanout) Broadcast(ctx context.Context, msg models.ChatMessage, sender models.User) models.NewMessagePayload {
	msg.GroupID = canonicalGroupID(msg.GroupID)
	payload := models.NewMessagePayloadFrom(msg, sender, f.now())
	delivered := f.hub.EmitToRoom(msg.GroupID, models.EventNewMessage, payload)
	observability.IncMessage("delivered")

	_ = observability.PublishEvent(ctx, chatRoutingKey, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: models.EventNewMessage,
		Payload: map[string]interface{}{
			"message_id": payload.ID,
			"group_id":   payload.GroupID,
			"sender_id":  sender.ID,
			"kind":       payload.MessageType,
			"recipients": delivered,
		},
	}, nil)
	return payload
}
