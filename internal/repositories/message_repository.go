package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperr"
	"messaging-service/internal/clock"
	"messaging-service/internal/models"
)

var ErrMessageNotFound = apperr.NotFound("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Append(ctx context.Context, msg models.NewMessage) (models.Message, error)
	ListVisible(ctx context.Context, conversationID int64, watermark *time.Time, after *models.Cursor, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkRead(ctx context.Context, messageID, recipientID int64, at time.Time) (bool, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, body, created_at, read_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db    *sqlx.DB
	clock clock.Clock
	retry readRetrier
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB, readRetries uint64, clk clock.Clock) *MessageRepo {
	if clk == nil {
		clk = clock.NewMonotonic(nil)
	}
	return &MessageRepo{db: db, clock: clk, retry: readRetrier{maxRetries: readRetries}}
}

// Append stores a message and advances the owning conversation's
// last_message_at in one transaction. created_at is taken while the
// conversation row is locked, so (created_at, id) follows commit order.
func (r *MessageRepo) Append(ctx context.Context, in models.NewMessage) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	err = tx.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1 FOR UPDATE`, in.ConversationID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrConversationNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	createdAt := conv.NextMessageTime(r.clock.Now())

	if err = tx.GetContext(ctx, &msg, `INSERT INTO messages (conversation_id, sender_id, recipient_id, body, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		in.ConversationID, in.SenderID, in.RecipientID, in.Body, createdAt); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, in.ConversationID, createdAt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListVisible returns up to limit messages created after watermark (when set)
// and strictly after the cursor, ordered by (created_at, id).
func (r *MessageRepo) ListVisible(ctx context.Context, conversationID int64, watermark *time.Time, after *models.Cursor, limit int) ([]models.Message, error) {
	var query strings.Builder
	args := []any{conversationID}
	query.WriteString(`SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1`)
	if watermark != nil {
		args = append(args, *watermark)
		fmt.Fprintf(&query, ` AND created_at > $%d`, len(args))
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		fmt.Fprintf(&query, ` AND (created_at, id) > ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&query, ` ORDER BY created_at ASC, id ASC LIMIT $%d`, len(args))

	var msgs []models.Message
	err := r.retry.do(ctx, func() error {
		msgs = msgs[:0]
		return r.db.SelectContext(ctx, &msgs, query.String(), args...)
	})
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.retry.do(ctx, func() error {
		return r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead sets read_at when the message belongs to recipientID and is still
// unread. It reports whether a row changed.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, recipientID int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_at = $3 WHERE id = $1 AND recipient_id = $2 AND read_at IS NULL`, messageID, recipientID, at)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountUnread counts unread messages addressed to userID that are visible
// under the user's current watermark in each conversation.
func (r *MessageRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.retry.do(ctx, func() error {
		return r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages m
            JOIN conversations c ON c.id = m.conversation_id
            WHERE m.recipient_id = $1 AND m.read_at IS NULL
            AND m.created_at > `+viewerWatermark, userID)
	})
	return count, err
}
