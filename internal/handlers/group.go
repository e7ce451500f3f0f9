package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studybuddy-chat/internal/models"
	"studybuddy-chat/internal/repositories"
	"studybuddy-chat/internal/telemetry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type presenceNotifier interface {
	NotifyMemberJoined(ctx context.Context, groupID string, user models.User) error
	NotifyMemberLeft(ctx context.Context, groupID string, user models.User) error
}

type messageBroadcaster interface {
	Broadcast(ctx context.Context, msg models.ChatMessage, sender models.User) models.NewMessagePayload
}

// GroupHandler manages study group endpoints.
type GroupHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.GroupMessageRepository
	userRepo    repositories.UserRepository
	notifier    presenceNotifier
	broadcaster messageBroadcaster
	audit       *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler. notifier and broadcaster may be
// nil, in which case durable writes happen without realtime side effects.
func NewGroupHandler(groupRepo repositories.GroupRepository, messageRepo repositories.GroupMessageRepository, userRepo repositories.UserRepository, notifier presenceNotifier, broadcaster messageBroadcaster, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// Register mounts the group routes on rg.
func (h *GroupHandler) Register(rg gin.IRoutes) {
	rg.POST("/groups", h.CreateGroup)
	rg.GET("/groups", h.ListGroups)
	rg.GET("/groups/:group_id", h.GetGroup)
	rg.POST("/groups/:group_id/join", h.JoinGroup)
	rg.POST("/groups/:group_id/leave", h.LeaveGroup)
	rg.GET("/groups/:group_id/messages", h.GetGroupMessages)
	rg.POST("/groups/:group_id/messages", h.PostGroupMessage)
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		MaxMembers  int    `json:"maxMembers" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), user.ID, name, strings.TrimSpace(req.Description), req.MaxMembers)
	if err != nil {
		log.Printf("create group failed user_id=%s: %v", user.ID, err)
		h.emitAudit(c, "ERROR", "internal error", "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created", group.ID)
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns a group with its member count.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}

	count, err := h.groupRepo.CountMembers(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count members"})
		return
	}
	c.JSON(http.StatusOK, models.GroupDetail{StudyGroup: group, MemberCount: count})
}

// JoinGroup enrols the caller and announces member_joined to the room.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	member, err := h.groupRepo.AddMember(c.Request.Context(), groupID, user.ID)
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	case errors.Is(err, repositories.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
		return
	case errors.Is(err, repositories.ErrGroupFull):
		h.emitAudit(c, "ERROR", "group full", groupID)
		c.JSON(http.StatusConflict, gin.H{"error": "group is full"})
		return
	case err != nil:
		log.Printf("join group failed group_id=%s user_id=%s: %v", groupID, user.ID, err)
		h.emitAudit(c, "ERROR", "internal error", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join group"})
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyMemberJoined(c.Request.Context(), groupID, user); err != nil {
			log.Printf("member_joined broadcast failed group_id=%s user_id=%s: %v", groupID, user.ID, err)
		}
	}

	h.emitAudit(c, "INFO", "Group joined", groupID)
	c.JSON(http.StatusCreated, member)
}

// LeaveGroup removes the caller's membership and announces member_left.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}

	member, err := h.groupRepo.FindMembership(c.Request.Context(), groupID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a member"})
		return
	}
	if member.Role == models.RoleOwner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner cannot leave the group"})
		return
	}

	err = h.groupRepo.RemoveMember(c.Request.Context(), groupID, user.ID)
	if errors.Is(err, repositories.ErrNotMember) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a member"})
		return
	}
	if err != nil {
		log.Printf("leave group failed group_id=%s user_id=%s: %v", groupID, user.ID, err)
		h.emitAudit(c, "ERROR", "internal error", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave group"})
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyMemberLeft(c.Request.Context(), groupID, user); err != nil {
			log.Printf("member_left broadcast failed group_id=%s user_id=%s: %v", groupID, user.ID, err)
		}
	}

	h.emitAudit(c, "INFO", "Group left", groupID)
	c.Status(http.StatusNoContent)
}

// GetGroupMessages returns the latest messages in the group, oldest first.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	user, groupID, ok := h.requireMember(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	msgs, err := h.messageRepo.ListGroupMessages(c.Request.Context(), groupID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senders := map[string]models.User{user.ID: user}
	now := time.Now()
	resp := make([]models.NewMessagePayload, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := senders[m.UserID]
		if !ok {
			sender = h.lookupSender(c.Request.Context(), m.UserID)
			senders[m.UserID] = sender
		}
		resp = append(resp, models.NewMessagePayloadFrom(m, sender, now))
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostGroupMessage persists a message and broadcasts new_message to the room.
func (h *GroupHandler) PostGroupMessage(c *gin.Context) {
	user, groupID, ok := h.requireMember(c)
	if !ok {
		return
	}

	var req struct {
		Content     string `json:"content" binding:"required"`
		MessageType string `json:"messageType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload", groupID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	kind, ok := models.ParseMessageKind(req.MessageType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), groupID, user.ID, content, kind)
	if err != nil {
		log.Printf("store message failed group_id=%s user_id=%s: %v", groupID, user.ID, err)
		h.emitAudit(c, "ERROR", "internal error", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	var payload models.NewMessagePayload
	if h.broadcaster != nil {
		payload = h.broadcaster.Broadcast(c.Request.Context(), msg, user)
	} else {
		payload = models.NewMessagePayloadFrom(msg, user, time.Now())
	}

	h.emitAudit(c, "INFO", "Group message sent", groupID)
	c.JSON(http.StatusCreated, payload)
}

func (h *GroupHandler) requireUser(c *gin.Context) (models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
	}
	return user, ok
}

func (h *GroupHandler) requireMember(c *gin.Context) (models.User, string, bool) {
	user, ok := h.requireUser(c)
	if !ok {
		return models.User{}, "", false
	}
	groupID, ok := parseGroupID(c)
	if !ok {
		return models.User{}, "", false
	}

	member, err := h.groupRepo.FindMembership(c.Request.Context(), groupID, user.ID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return models.User{}, "", false
	}
	if member == nil {
		h.emitAudit(c, "ERROR", "not allowed", groupID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return models.User{}, "", false
	}
	return user, groupID, true
}

func (h *GroupHandler) lookupSender(ctx context.Context, userID string) models.User {
	if h.userRepo == nil {
		return models.User{ID: userID}
	}
	user, err := h.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		log.Printf("sender lookup failed user_id=%s: %v", userID, err)
		return models.User{ID: userID}
	}
	return user
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text, groupID string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c), groupID)
}

func parseGroupID(c *gin.Context) (string, bool) {
	groupID, err := uuid.Parse(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return "", false
	}
	return groupID.String(), true
}
