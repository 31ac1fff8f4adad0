package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/clock"
	"messaging-service/internal/models"
)

var messageCols = []string{"id", "conversation_id", "sender_id", "recipient_id", "body", "created_at", "read_at"}

func fixedClock(at time.Time) clock.Clock {
	return clock.Func(func() time.Time { return at })
}

func TestAppendStampsUnderRowLockAndTouches(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMessageRepo(db, 0, fixedClock(at))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow(5, 1, 2, at.Add(-time.Minute), nil, nil, at.Add(-time.Hour)))
	mock.ExpectQuery(`INSERT INTO messages \(conversation_id, sender_id, recipient_id, body, created_at\)`).
		WithArgs(int64(5), int64(1), int64(2), "hi", at).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(11, 5, 1, 2, "hi", at, nil))
	mock.ExpectExec(`UPDATE conversations SET last_message_at = \$2 WHERE id = \$1`).
		WithArgs(int64(5), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := repo.Append(context.Background(), models.NewMessage{ConversationID: 5, SenderID: 1, RecipientID: 2, Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.Nil(t, msg.ReadAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendNeverStampsBeforeLatestOrWatermark(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMessageRepo(db, 0, fixedClock(at))
	last := at.Add(time.Second)
	watermark := at.Add(2 * time.Second)
	want := watermark.Add(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow(5, 1, 2, last, nil, watermark, at.Add(-time.Hour)))
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(int64(5), int64(1), int64(2), "hi", want).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(12, 5, 1, 2, "hi", want, nil))
	mock.ExpectExec(`UPDATE conversations SET last_message_at`).
		WithArgs(int64(5), want).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := repo.Append(context.Background(), models.NewMessage{ConversationID: 5, SenderID: 1, RecipientID: 2, Body: "hi"})
	require.NoError(t, err)
	assert.True(t, msg.CreatedAt.Equal(want))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackWhenConversationMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(conversationCols))
	mock.ExpectRollback()

	_, err := repo.Append(context.Background(), models.NewMessage{ConversationID: 5, SenderID: 1, RecipientID: 2, Body: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Now().UTC()
	repo := NewMessageRepo(db, 0, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow(5, 1, 2, nil, nil, nil, at))
	mock.ExpectQuery(`INSERT INTO messages`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Append(context.Background(), models.NewMessage{ConversationID: 5, SenderID: 1, RecipientID: 2, Body: "hi"})
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListVisibleWithWatermarkAndCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)
	wm := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cursor := models.Cursor{CreatedAt: wm.Add(time.Minute), ID: 7}

	mock.ExpectQuery(`SELECT (.+) FROM messages WHERE conversation_id = \$1 AND created_at > \$2 AND \(created_at, id\) > \(\$3, \$4\) ORDER BY created_at ASC, id ASC LIMIT \$5`).
		WithArgs(int64(5), wm, cursor.CreatedAt, int64(7), 3).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(8, 5, 1, 2, "later", wm.Add(2*time.Minute), nil))

	msgs, err := repo.ListVisible(context.Background(), 5, &wm, &cursor, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "later", msgs[0].Body)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListVisibleWithoutFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)

	mock.ExpectQuery(`FROM messages WHERE conversation_id = \$1 ORDER BY created_at ASC, id ASC LIMIT \$2`).
		WithArgs(int64(5), 50).
		WillReturnRows(sqlmock.NewRows(messageCols))

	msgs, err := repo.ListVisible(context.Background(), 5, nil, nil, 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessageNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)

	mock.ExpectQuery(`FROM messages WHERE id=\$1`).WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(messageCols))

	_, err := repo.GetMessage(context.Background(), 3)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMarkReadOnlyOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE messages SET read_at = \$3 WHERE id = \$1 AND recipient_id = \$2 AND read_at IS NULL`).
		WithArgs(int64(3), int64(2), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE messages SET read_at`).
		WithArgs(int64(3), int64(2), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkRead(context.Background(), 3, 2, at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkRead(context.Background(), 3, 2, at)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnread(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, 0, nil)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM messages m JOIN conversations c ON c.id = m.conversation_id WHERE m.recipient_id = \$1 AND m.read_at IS NULL`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountUnread(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
