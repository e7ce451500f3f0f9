package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"studybuddy-chat/internal/models"
)

// GroupMessageRepository defines interactions for group chat messages.
type GroupMessageRepository interface {
	CreateMessage(ctx context.Context, groupID, userID, content string, kind models.MessageKind) (models.ChatMessage, error)
	ListGroupMessages(ctx context.Context, groupID string, limit int) ([]models.ChatMessage, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// CreateMessage persists a group message.
func (r *GroupMessageRepo) CreateMessage(ctx context.Context, groupID, userID, content string, kind models.MessageKind) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO group_messages (group_id, user_id, content, message_type) VALUES ($1, $2, $3, $4) RETURNING id, group_id, user_id, content, message_type, created_at`, groupID, userID, content, kind).
		StructScan(&msg)
	return msg, err
}

// ListGroupMessages returns the latest limit messages, oldest first.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID string, limit int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, group_id, user_id, content, message_type, created_at FROM (
            SELECT id, group_id, user_id, content, message_type, created_at FROM group_messages
            WHERE group_id=$1 ORDER BY created_at DESC LIMIT $2
        ) recent ORDER BY created_at ASC`, groupID, limit)
	return msgs, err
}
