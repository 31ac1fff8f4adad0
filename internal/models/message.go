package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message represents a text message inside a conversation.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64      `db:"sender_id" json:"sender_id"`
	RecipientID    int64      `db:"recipient_id" json:"recipient_id"`
	Body           string     `db:"body" json:"body"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// NewMessage is the input of a message append.
type NewMessage struct {
	ConversationID int64
	SenderID       int64
	RecipientID    int64
	Body           string
}

// Cursor is the (created_at, id) sort key of the last message a client saw.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// CursorOf returns the sort key of m.
func CursorOf(m Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Less reports whether m sorts strictly after the cursor position.
func (c Cursor) Less(m Message) bool {
	if c.CreatedAt.Equal(m.CreatedAt) {
		return c.ID < m.ID
	}
	return c.CreatedAt.Before(m.CreatedAt)
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMicro(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

var ErrInvalidCursor = errors.New("invalid cursor")

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	micros, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Cursor{}, ErrInvalidCursor
	}
	us, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	msgID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || msgID <= 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: time.UnixMicro(us).UTC(), ID: msgID}, nil
}

func (c Cursor) String() string {
	return fmt.Sprintf("(%s, %d)", c.CreatedAt.Format(time.RFC3339Nano), c.ID)
}

// MessagePage is one page of a conversation's visible messages.
type MessagePage struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// MessageEvent is broadcasted through websockets.
type MessageEvent struct {
	Event   string   `json:"event"`
	Channel string   `json:"channel"`
	Message *Message `json:"message,omitempty"`
}

const EventMessageSent = "message.sent"
