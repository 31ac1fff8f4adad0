package ws

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/apperr"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
)

// ConversationWebSocketHandler upgrades subscription requests for a conversation channel.
type ConversationWebSocketHandler struct {
	hub       *Hub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, validator middleware.TokenValidator) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates the caller, authorizes the conversation and hands
// the upgraded connection to the hub.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		middleware.AbortWithError(c, apperr.Validation("invalid conversation id"))
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		middleware.AbortWithError(c, apperr.Unauthenticated("missing token"))
		return
	}
	userID, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		middleware.AbortWithError(c, apperr.Unauthenticated("invalid token"))
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	upgraded := false
	err = h.hub.Subscribe(ctx, conversationID, info, func() (Conn, error) {
		upgraded = true
		return h.upgrader.Upgrade(c.Writer, c.Request, nil)
	})
	if err != nil && !upgraded {
		middleware.AbortWithError(c, err)
	}
}
