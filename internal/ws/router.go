package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studybuddy-chat/internal/models"
)

var (
	ErrMissingGroupID = errors.New("missing group id")
	ErrInvalidGroupID = errors.New("invalid group id")
)

// parseGroupID returns the canonical lowercase form of a client supplied
// group id. Room keys, repository calls and stored rows all use this form.
func parseGroupID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingGroupID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroupID, raw)
	}
	return id.String(), nil
}

// canonicalGroupID normalizes ids coming from the store or REST layer,
// leaving anything unparsable untouched.
func canonicalGroupID(groupID string) string {
	if id, err := uuid.Parse(groupID); err == nil {
		return id.String()
	}
	return groupID
}

type memberCounter interface {
	CountMembers(ctx context.Context, groupID string) (int, error)
}

// EventRouter turns join/leave events into room subscriptions and announces
// durable membership changes to a room.
type EventRouter struct {
	hub    *Hub
	groups memberCounter
}

// NewEventRouter constructs an EventRouter.
func NewEventRouter(hub *Hub, groups memberCounter) *EventRouter {
	return &EventRouter{hub: hub, groups: groups}
}

// JoinGroup subscribes the client to the group's room. It does not touch
// durable membership.
func (r *EventRouter) JoinGroup(c *Client, rawGroupID string) error {
	groupID, err := parseGroupID(rawGroupID)
	if err != nil {
		return err
	}
	r.hub.JoinRoom(groupID, c.ID())
	return nil
}

// LeaveGroup unsubscribes the client. Leaving a room never joined is a no-op.
func (r *EventRouter) LeaveGroup(c *Client, rawGroupID string) error {
	groupID, err := parseGroupID(rawGroupID)
	if err != nil {
		return err
	}
	r.hub.LeaveRoom(groupID, c.ID())
	return nil
}

// NotifyMemberJoined must be called after the membership row is written.
func (r *EventRouter) NotifyMemberJoined(ctx context.Context, groupID string, user models.User) error {
	return r.notify(ctx, models.EventMemberJoined, groupID, user)
}

// NotifyMemberLeft must be called after the membership row is deleted.
func (r *EventRouter) NotifyMemberLeft(ctx context.Context, groupID string, user models.User) error {
	return r.notify(ctx, models.EventMemberLeft, groupID, user)
}

func (r *EventRouter) notify(ctx context.Context, event, groupID string, user models.User) error {
	groupID = canonicalGroupID(groupID)
	count, err := r.groups.CountMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	r.hub.EmitToRoom(groupID, event, models.MemberEvent{
		Type:    event,
		GroupID: groupID,
		Data: models.MemberEventData{
			User:        user.Public(),
			MemberCount: count,
		},
	})
	return nil
}
