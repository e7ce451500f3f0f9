package models

import "time"

// MessageKind classifies chat message content.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
	KindLink  MessageKind = "link"
)

// ParseMessageKind maps a client supplied kind, defaulting blank to text.
func ParseMessageKind(raw string) (MessageKind, bool) {
	switch kind := MessageKind(raw); kind {
	case "":
		return KindText, true
	case KindText, KindImage, KindFile, KindLink:
		return kind, true
	default:
		return "", false
	}
}

// ChatMessage represents a message posted to a study group.
type ChatMessage struct {
	ID        string      `db:"id" json:"id"`
	GroupID   string      `db:"group_id" json:"groupId"`
	UserID    string      `db:"user_id" json:"userId"`
	Content   string      `db:"content" json:"content"`
	Kind      MessageKind `db:"message_type" json:"messageType"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}
