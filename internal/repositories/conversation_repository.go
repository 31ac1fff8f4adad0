package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = apperr.NotFound("conversation not found")
	ErrConversationExists   = apperr.New(apperr.CodeConflictRetried, "conversation already exists")
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindByPair(ctx context.Context, low, high int64) (models.Conversation, error)
	CreateConversation(ctx context.Context, low, high int64) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	SetWatermark(ctx context.Context, conversationID, userID int64, at time.Time) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

const conversationColumns = `id, participant_low, participant_high, last_message_at, deleted_at_low, deleted_at_high, created_at`

// viewerWatermark selects the watermark column of participant $1.
const viewerWatermark = `COALESCE(CASE WHEN c.participant_low = $1 THEN c.deleted_at_low ELSE c.deleted_at_high END, '-infinity'::timestamptz)`

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db    *sqlx.DB
	retry readRetrier
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB, readRetries uint64) *ConversationRepo {
	return &ConversationRepo{db: db, retry: readRetrier{maxRetries: readRetries}}
}

// FindByPair looks up the conversation of a canonical pair.
func (r *ConversationRepo) FindByPair(ctx context.Context, low, high int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.retry.do(ctx, func() error {
		return r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE participant_low=$1 AND participant_high=$2`, low, high)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// CreateConversation inserts a conversation for a canonical pair. It returns
// ErrConversationExists when another writer created the pair first.
func (r *ConversationRepo) CreateConversation(ctx context.Context, low, high int64) (models.Conversation, error) {
	if low >= high {
		return models.Conversation{}, apperr.InvalidParticipants("participants must be distinct and ordered")
	}
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (participant_low, participant_high) VALUES ($1, $2)
        ON CONFLICT (participant_low, participant_high) DO NOTHING
        RETURNING `+conversationColumns, low, high)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return models.Conversation{}, ErrConversationExists
	}
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.retry.do(ctx, func() error {
		return r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.retry.do(ctx, func() error {
		return r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (participant_low=$2 OR participant_high=$2))`, conversationID, userID)
	})
	return exists, err
}

// SetWatermark moves userID's watermark to at. A watermark never moves
// backwards.
func (r *ConversationRepo) SetWatermark(ctx context.Context, conversationID, userID int64, at time.Time) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `UPDATE conversations SET
            deleted_at_low = CASE WHEN participant_low = $2 THEN GREATEST(deleted_at_low, $3) ELSE deleted_at_low END,
            deleted_at_high = CASE WHEN participant_high = $2 THEN GREATEST(deleted_at_high, $3) ELSE deleted_at_high END
        WHERE id = $1 AND (participant_low = $2 OR participant_high = $2)
        RETURNING `+conversationColumns, conversationID, userID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns conversations with at least one message visible to the
// user, most recent first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	query := `SELECT c.id,
            CASE WHEN c.participant_low = $1 THEN c.participant_high ELSE c.participant_low END AS other_user_id,
            c.last_message_at,
            (SELECT COUNT(*) FROM messages m
                WHERE m.conversation_id = c.id AND m.recipient_id = $1 AND m.read_at IS NULL
                AND m.created_at > ` + viewerWatermark + `) AS unread_count
        FROM conversations c
        WHERE (c.participant_low = $1 OR c.participant_high = $1)
        AND c.last_message_at IS NOT NULL
        AND c.last_message_at > ` + viewerWatermark + `
        ORDER BY c.last_message_at DESC, c.id DESC`

	var result []models.ConversationSummary
	err := r.retry.do(ctx, func() error {
		result = result[:0]
		return r.db.SelectContext(ctx, &result, query, userID)
	})
	return result, err
}
