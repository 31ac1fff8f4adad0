package models

import (
	"fmt"
	"time"
)

// Conversation is the single thread between two participants. The pair is
// always stored with ParticipantLow < ParticipantHigh.
type Conversation struct {
	ID              int64      `db:"id" json:"id"`
	ParticipantLow  int64      `db:"participant_low" json:"participant_low"`
	ParticipantHigh int64      `db:"participant_high" json:"participant_high"`
	LastMessageAt   *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	DeletedAtLow    *time.Time `db:"deleted_at_low" json:"-"`
	DeletedAtHigh   *time.Time `db:"deleted_at_high" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// CanonicalPair orders two participant ids.
func CanonicalPair(a, b int64) (low, high int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID int64) int64 {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// Watermark returns userID's deletion watermark, nil when never set.
func (c Conversation) Watermark(userID int64) *time.Time {
	switch userID {
	case c.ParticipantLow:
		return c.DeletedAtLow
	case c.ParticipantHigh:
		return c.DeletedAtHigh
	}
	return nil
}

// VisibleTo applies the watermark rule for a message created at createdAt.
func (c Conversation) VisibleTo(userID int64, createdAt time.Time) bool {
	wm := c.Watermark(userID)
	return wm == nil || createdAt.After(*wm)
}

// NextMessageTime returns the created_at for a message appended now. It never
// sorts before the latest message and always lands after both watermarks.
func (c Conversation) NextMessageTime(now time.Time) time.Time {
	next := now
	if c.LastMessageAt != nil && c.LastMessageAt.After(next) {
		next = *c.LastMessageAt
	}
	for _, wm := range []*time.Time{c.DeletedAtLow, c.DeletedAtHigh} {
		if wm != nil && !next.After(*wm) {
			next = wm.Add(time.Microsecond)
		}
	}
	return next
}

// ChannelName is the real-time channel of a conversation.
func ChannelName(conversationID int64) string {
	return fmt.Sprintf("conversation.%d", conversationID)
}

// ConversationSummary provides API-friendly view of a conversation for a user.
type ConversationSummary struct {
	ConversationID int64      `db:"id" json:"conversation_id"`
	OtherUserID    int64      `db:"other_user_id" json:"other_user_id"`
	LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount    int        `db:"unread_count" json:"unread_count"`
}
