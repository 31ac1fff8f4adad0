package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"messaging-service/internal/apperr"
	"messaging-service/internal/clock"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

type MessageOptions struct {
	MaxBodyLength     int
	DefaultPageSize   int
	MaxPageSize       int
	SideEffectTimeout time.Duration
}

// MessageService appends, lists and hides messages and drives the
// post-commit broadcast and unread bookkeeping.
type MessageService struct {
	resolver      *Resolver
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	broadcaster   Broadcaster
	notifier      Notifier
	clock         clock.Clock
	opts          MessageOptions
	logger        *zap.Logger
}

func NewMessageService(
	resolver *Resolver,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	broadcaster Broadcaster,
	notifier Notifier,
	clk clock.Clock,
	opts MessageOptions,
	logger *zap.Logger,
) *MessageService {
	if opts.SideEffectTimeout <= 0 {
		opts.SideEffectTimeout = 2 * time.Second
	}
	return &MessageService{
		resolver:      resolver,
		conversations: conversations,
		messages:      messages,
		broadcaster:   broadcaster,
		notifier:      notifier,
		clock:         clk,
		opts:          opts,
		logger:        logger,
	}
}

// Resolve exposes the resolver to the HTTP layer.
func (s *MessageService) Resolve(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	return s.resolver.Resolve(ctx, userA, userB)
}

// Send delivers body from senderID to recipientID, creating the
// conversation on first contact.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID int64, body string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messages.send")
	defer span.End()

	body, err := s.validateBody(body)
	if err != nil {
		return models.Message{}, err
	}
	conv, err := s.resolver.Resolve(ctx, senderID, recipientID)
	if err != nil {
		return models.Message{}, err
	}
	return s.appendAndFanOut(ctx, conv, senderID, body)
}

// SendToConversation appends to an existing conversation of the sender.
func (s *MessageService) SendToConversation(ctx context.Context, conversationID, senderID int64, body string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messages.send_to_conversation")
	defer span.End()

	body, err := s.validateBody(body)
	if err != nil {
		return models.Message{}, err
	}
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, ErrNotParticipant
	}
	return s.appendAndFanOut(ctx, conv, senderID, body)
}

func (s *MessageService) validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > s.opts.MaxBodyLength {
		return "", ErrBodyTooLong
	}
	return body, nil
}

func (s *MessageService) appendAndFanOut(ctx context.Context, conv models.Conversation, senderID int64, body string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, apperr.Wrap(apperr.CodeDeadlineExceeded, "send timed out before commit", err)
	}

	msg, err := s.messages.Append(ctx, models.NewMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    conv.Other(senderID),
		Body:           body,
	})
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessagesSent()

	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	if err := s.broadcaster.Publish(sideCtx, msg.ConversationID, msg); err != nil {
		observability.IncSideEffectError("broadcast")
		s.logger.Warn("broadcast failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	if err := s.notifier.OnNewMessage(sideCtx, msg); err != nil {
		observability.IncSideEffectError("notify")
		s.logger.Warn("new message notification failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	return msg, nil
}

// sideEffectContext keeps request values (trace, request id) but not the
// caller's cancellation: once the write committed, fan-out runs on its own
// budget.
func (s *MessageService) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.SideEffectTimeout)
}

// ListMessages returns a page of the messages visible to viewerID, in
// (created_at, id) order, strictly after cursor when one is given.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, viewerID int64, cursor *models.Cursor, limit int) (models.MessagePage, error) {
	ctx, span := tracer.Start(ctx, "messages.list")
	defer span.End()

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.MessagePage{}, err
	}
	if !conv.HasParticipant(viewerID) {
		return models.MessagePage{}, ErrNotParticipant
	}

	limit = s.clampLimit(limit)
	msgs, err := s.messages.ListVisible(ctx, conv.ID, conv.Watermark(viewerID), cursor, limit+1)
	if err != nil {
		return models.MessagePage{}, err
	}

	page := models.MessagePage{Items: msgs}
	if len(msgs) > limit {
		page.Items = msgs[:limit]
		page.HasMore = true
	}
	if len(page.Items) > 0 {
		page.NextCursor = models.CursorOf(page.Items[len(page.Items)-1]).Encode()
	} else {
		page.Items = []models.Message{}
	}
	span.SetAttributes(attribute.Int("messages.count", len(page.Items)))
	return page, nil
}

func (s *MessageService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		return s.opts.MaxPageSize
	}
	return limit
}

// DeleteForViewer hides everything up to now from viewerID. Repeating it
// only moves the watermark forward.
func (s *MessageService) DeleteForViewer(ctx context.Context, conversationID, viewerID int64) error {
	ctx, span := tracer.Start(ctx, "messages.delete_for_viewer")
	defer span.End()

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(viewerID) {
		return ErrNotParticipant
	}
	if _, err := s.conversations.SetWatermark(ctx, conv.ID, viewerID, s.clock.Now()); err != nil {
		return err
	}

	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	if err := s.notifier.OnDeleteForViewer(sideCtx, viewerID, conv.ID); err != nil {
		observability.IncSideEffectError("notify")
		s.logger.Warn("unread update after delete failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
	}
	return nil
}

// MarkRead stamps read_at on a message addressed to viewerID. A second call
// keeps the first timestamp.
func (s *MessageService) MarkRead(ctx context.Context, messageID, viewerID int64) error {
	ctx, span := tracer.Start(ctx, "messages.mark_read")
	defer span.End()

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RecipientID != viewerID {
		return ErrNotRecipient
	}
	changed, err := s.messages.MarkRead(ctx, messageID, viewerID, s.clock.Now())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	if err := s.notifier.OnMarkRead(sideCtx, viewerID, msg.ConversationID); err != nil {
		observability.IncSideEffectError("notify")
		s.logger.Warn("unread update after read failed", zap.Int64("message_id", messageID), zap.Error(err))
	}
	return nil
}

// ListConversations returns the conversations with messages visible to
// userID, newest activity first.
func (s *MessageService) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "messages.list_conversations")
	defer span.End()

	list, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	return list, nil
}
