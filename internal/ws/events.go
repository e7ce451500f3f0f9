package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"studybuddy-chat/internal/observability"
)

const (
	EventJoinGroup   = "join_group"
	EventLeaveGroup  = "leave_group"
	EventSendMessage = "send_message"
)

// dispatch routes one inbound frame. Failures are logged and never reported
// back to the socket.
func (h *Handler) dispatch(ctx context.Context, c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("ws: malformed frame conn_id=%s: %v", c.ID(), err)
		return
	}

	switch env.Event {
	case EventJoinGroup:
		if err := h.router.JoinGroup(c, decodeGroupID(env.Data)); err != nil {
			log.Printf("ws: join_group ignored conn_id=%s: %v", c.ID(), err)
			return
		}
	case EventLeaveGroup:
		if err := h.router.LeaveGroup(c, decodeGroupID(env.Data)); err != nil {
			log.Printf("ws: leave_group ignored conn_id=%s: %v", c.ID(), err)
			return
		}
	case EventSendMessage:
		var req SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("ws: send_message ignored conn_id=%s: %v", c.ID(), err)
			return
		}
		if _, err := h.fanout.SendMessage(ctx, c, req); err != nil {
			log.Printf("ws: send_message dropped conn_id=%s group_id=%s: %v", c.ID(), req.GroupID, err)
			return
		}
	default:
		log.Printf("ws: unknown event %q conn_id=%s", env.Event, c.ID())
		return
	}
	observability.IncWSEvent(env.Event)
}

// decodeGroupID accepts a bare JSON string or {"groupId": "..."}. The router
// validates and canonicalizes the result.
func decodeGroupID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.GroupID)
	}
	return ""
}
