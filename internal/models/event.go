package models

import "time"

const (
	EventNewMessage   = "new_message"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
)

// SenderSummary identifies the author of a broadcast message.
type SenderSummary struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Avatar    *string `json:"avatar,omitempty"`
}

// NewMessagePayload is delivered to a room for every persisted message.
type NewMessagePayload struct {
	ID          string        `json:"id"`
	GroupID     string        `json:"groupId"`
	Content     string        `json:"content"`
	MessageType MessageKind   `json:"messageType"`
	Sender      SenderSummary `json:"sender"`
	Timestamp   string        `json:"timestamp"`
}

// NewMessagePayloadFrom shapes a persisted message for broadcast. A zero
// creation time falls back to now.
func NewMessagePayloadFrom(msg ChatMessage, sender User, now time.Time) NewMessagePayload {
	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = now
	}
	kind := msg.Kind
	if kind == "" {
		kind = KindText
	}
	return NewMessagePayload{
		ID:          msg.ID,
		GroupID:     msg.GroupID,
		Content:     msg.Content,
		MessageType: kind,
		Sender: SenderSummary{
			ID:        sender.ID,
			FirstName: sender.FirstName,
			LastName:  sender.LastName,
			Avatar:    sender.Avatar,
		},
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}
}

// MemberEvent announces a durable membership change to a room.
type MemberEvent struct {
	Type    string          `json:"type"`
	GroupID string          `json:"groupId"`
	Data    MemberEventData `json:"data"`
}

// MemberEventData carries the acting user and the recomputed member count.
type MemberEventData struct {
	User        PublicProfile `json:"user"`
	MemberCount int           `json:"memberCount"`
}
