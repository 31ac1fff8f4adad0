package service

import (
	"context"

	"go.opentelemetry.io/otel"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
)

var tracer = otel.Tracer("messaging-service/service")

var (
	ErrSelfConversation = apperr.InvalidParticipants("cannot start a conversation with yourself")
	ErrInvalidUserID    = apperr.InvalidParticipants("user ids must be positive")
	ErrUserNotFound     = apperr.NotFound("user not found")
	ErrNotParticipant   = apperr.Forbidden("not a conversation participant")
	ErrNotRecipient     = apperr.Forbidden("only the recipient can mark a message read")
	ErrEmptyBody        = apperr.Validation("message body must not be empty")
	ErrBodyTooLong      = apperr.Validation("message body is too long")
)

// UserDirectory is the external user-identity collaborator.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Broadcaster pushes committed messages to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, conversationID int64, msg models.Message) error
}

// Notifier reacts to message lifecycle changes with unread bookkeeping and
// notification events.
type Notifier interface {
	OnNewMessage(ctx context.Context, msg models.Message) error
	OnMarkRead(ctx context.Context, userID, conversationID int64) error
	OnDeleteForViewer(ctx context.Context, userID, conversationID int64) error
}
