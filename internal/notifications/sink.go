package notifications

import (
	"context"
	"time"
)

const (
	TypeNewMessage  = "new_message"
	TypeUnreadCount = "unread_count"
)

// Event is handed to the notification-dispatch collaborator.
type Event struct {
	Type           string         `json:"type"`
	RecipientID    int64          `json:"recipient_id"`
	ConversationID int64          `json:"conversation_id"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Sink delivers notification events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// RoutingKey is the topic-exchange routing key of an event type.
func RoutingKey(eventType string) string {
	return "notifications." + eventType
}
