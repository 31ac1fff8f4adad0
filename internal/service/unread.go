package service

import (
	"context"

	"go.uber.org/zap"

	"messaging-service/internal/clock"
	"messaging-service/internal/models"
	"messaging-service/internal/notifications"
)

// UnreadCounter derives a user's unread count from the message store.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// UnreadCoordinator keeps no counters of its own: every count is derived
// from the store under the user's current watermarks, so hiding a
// conversation drops its messages from the count immediately.
type UnreadCoordinator struct {
	counter UnreadCounter
	sink    notifications.Sink
	clock   clock.Clock
	logger  *zap.Logger
}

func NewUnreadCoordinator(counter UnreadCounter, sink notifications.Sink, clk clock.Clock, logger *zap.Logger) *UnreadCoordinator {
	return &UnreadCoordinator{counter: counter, sink: sink, clock: clk, logger: logger}
}

var _ Notifier = (*UnreadCoordinator)(nil)

// UnreadCount returns the number of unread messages visible to userID.
func (u *UnreadCoordinator) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return u.counter.CountUnread(ctx, userID)
}

func (u *UnreadCoordinator) OnNewMessage(ctx context.Context, msg models.Message) error {
	count, err := u.counter.CountUnread(ctx, msg.RecipientID)
	if err != nil {
		return err
	}
	return u.sink.Emit(ctx, notifications.Event{
		Type:           notifications.TypeNewMessage,
		RecipientID:    msg.RecipientID,
		ConversationID: msg.ConversationID,
		Payload: map[string]any{
			"message_id":   msg.ID,
			"sender_id":    msg.SenderID,
			"unread_count": count,
		},
		OccurredAt: msg.CreatedAt,
	})
}

func (u *UnreadCoordinator) OnMarkRead(ctx context.Context, userID, conversationID int64) error {
	return u.emitCount(ctx, userID, conversationID)
}

func (u *UnreadCoordinator) OnDeleteForViewer(ctx context.Context, userID, conversationID int64) error {
	return u.emitCount(ctx, userID, conversationID)
}

func (u *UnreadCoordinator) emitCount(ctx context.Context, userID, conversationID int64) error {
	count, err := u.counter.CountUnread(ctx, userID)
	if err != nil {
		return err
	}
	u.logger.Debug("unread count recomputed", zap.Int64("user_id", userID), zap.Int("unread_count", count))
	return u.sink.Emit(ctx, notifications.Event{
		Type:           notifications.TypeUnreadCount,
		RecipientID:    userID,
		ConversationID: conversationID,
		Payload:        map[string]any{"unread_count": count},
		OccurredAt:     u.clock.Now(),
	})
}
