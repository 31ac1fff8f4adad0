package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Resolver finds or creates the single conversation of a participant pair.
type Resolver struct {
	conversations repositories.ConversationRepository
	users         UserDirectory
	logger        *zap.Logger
}

func NewResolver(conversations repositories.ConversationRepository, users UserDirectory, logger *zap.Logger) *Resolver {
	return &Resolver{conversations: conversations, users: users, logger: logger}
}

// Resolve returns the conversation between userA and userB, creating it on
// first contact. Concurrent first contacts converge on one row.
func (r *Resolver) Resolve(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	ctx, span := tracer.Start(ctx, "resolver.resolve")
	defer span.End()

	if userA <= 0 || userB <= 0 {
		return models.Conversation{}, ErrInvalidUserID
	}
	if userA == userB {
		return models.Conversation{}, ErrSelfConversation
	}
	for _, id := range []int64{userA, userB} {
		ok, err := r.users.Exists(ctx, id)
		if err != nil {
			return models.Conversation{}, apperr.Unavailable("user directory unavailable", err)
		}
		if !ok {
			return models.Conversation{}, ErrUserNotFound
		}
	}

	low, high := models.CanonicalPair(userA, userB)
	span.SetAttributes(attribute.Int64("participant_low", low), attribute.Int64("participant_high", high))

	conv, err := r.conversations.FindByPair(ctx, low, high)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, err
	}

	conv, err = r.conversations.CreateConversation(ctx, low, high)
	if errors.Is(err, repositories.ErrConversationExists) {
		observability.IncConversationConflict()
		r.logger.Debug("conversation created concurrently, re-reading",
			zap.Int64("participant_low", low),
			zap.Int64("participant_high", high))
		return r.conversations.FindByPair(ctx, low, high)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	r.logger.Info("conversation created", zap.Int64("conversation_id", conv.ID))
	return conv, nil
}
