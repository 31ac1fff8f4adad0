package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// MessagingService is the conversation and message API the handlers drive.
type MessagingService interface {
	Resolve(ctx context.Context, userA, userB int64) (models.Conversation, error)
	Send(ctx context.Context, senderID, recipientID int64, body string) (models.Message, error)
	SendToConversation(ctx context.Context, conversationID, senderID int64, body string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID, viewerID int64, cursor *models.Cursor, limit int) (models.MessagePage, error)
	DeleteForViewer(ctx context.Context, conversationID, viewerID int64) error
	MarkRead(ctx context.Context, messageID, viewerID int64) error
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

// UnreadService reports a user's live unread count.
type UnreadService interface {
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// ConversationHandler manages conversation and message endpoints.
type ConversationHandler struct {
	messages MessagingService
	unread   UnreadService
	audit    *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler. audit may be nil.
func NewConversationHandler(messages MessagingService, unread UnreadService, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{messages: messages, unread: unread, audit: audit}
}

// Register mounts the routes on an authenticated group. sendLimit guards
// the two send routes.
func (h *ConversationHandler) Register(r gin.IRouter, sendLimit gin.HandlerFunc) {
	if sendLimit == nil {
		sendLimit = func(c *gin.Context) { c.Next() }
	}
	r.POST("/conversations/resolve", h.Resolve)
	r.GET("/conversations", h.ListConversations)
	r.POST("/conversations/:id/messages", sendLimit, h.SendToConversation)
	r.GET("/conversations/:id/messages", h.ListMessages)
	r.POST("/conversations/:id/delete-for-me", h.DeleteForMe)
	r.POST("/messages", sendLimit, h.Send)
	r.POST("/messages/:id/read", h.MarkRead)
	r.GET("/unread", h.UnreadCount)
}

// Resolve returns the caller's conversation with another user, creating it
// on first contact.
func (h *ConversationHandler) Resolve(c *gin.Context) {
	var req struct {
		OtherUserID int64 `json:"other_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("other_user_id is required"))
		return
	}

	userID := middleware.UserID(c)
	conv, err := h.messages.Resolve(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "conversation resolved", requestIDFromContext(c), userIDFromContext(c), conv.ID)
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// ListConversations returns the caller's visible conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	list, err := h.messages.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

type sendRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Body        string `json:"body"`
}

// Send delivers a message to a user, resolving the conversation first.
func (h *ConversationHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body"))
		return
	}
	if req.RecipientID <= 0 {
		writeError(c, apperr.Validation("recipient_id is required"))
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.UserID(c), req.RecipientID, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SendToConversation appends a message to an existing conversation.
func (h *ConversationHandler) SendToConversation(c *gin.Context) {
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body"))
		return
	}

	msg, err := h.messages.SendToConversation(c.Request.Context(), conversationID, middleware.UserID(c), req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns one page of the caller's visible messages.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}

	var cursor *models.Cursor
	if raw := c.Query("cursor"); raw != "" {
		decoded, err := models.DecodeCursor(raw)
		if err != nil {
			writeError(c, apperr.Validation("invalid cursor"))
			return
		}
		cursor = &decoded
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(c, apperr.Validation("invalid limit"))
			return
		}
		limit = parsed
	}

	page, err := h.messages.ListMessages(c.Request.Context(), conversationID, middleware.UserID(c), cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeleteForMe hides the conversation's current history from the caller.
func (h *ConversationHandler) DeleteForMe(c *gin.Context) {
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}
	if err := h.messages.DeleteForViewer(c.Request.Context(), conversationID, middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "conversation hidden for user", requestIDFromContext(c), userIDFromContext(c), conversationID)
	c.Status(http.StatusNoContent)
}

// MarkRead stamps a received message as read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c, "id", "message")
	if !ok {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), messageID, middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount returns the caller's unread total.
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	count, err := h.unread.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
