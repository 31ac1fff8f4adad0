package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"messaging-service/internal/apperr"
	"messaging-service/internal/clock"
	"messaging-service/internal/models"
)

type pairKey struct {
	low, high int64
}

// MemoryStore keeps conversations and messages in process memory. It
// implements ConversationRepository and MessageRepository with the same
// semantics as the SQL repositories and backs database.driver=memory.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[int64]*models.Conversation
	byPair        map[pairKey]int64
	messages      map[int64]*models.Message
	byConv        map[int64][]int64
	nextConvID    int64
	nextMsgID     int64
	clock         clock.Clock
}

// NewMemoryStore returns an empty store stamping with clk; nil uses a
// monotonic wall clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewMonotonic(nil)
	}
	return &MemoryStore{
		conversations: make(map[int64]*models.Conversation),
		byPair:        make(map[pairKey]int64),
		messages:      make(map[int64]*models.Message),
		byConv:        make(map[int64][]int64),
		clock:         clk,
	}
}

var (
	_ ConversationRepository = (*MemoryStore)(nil)
	_ MessageRepository      = (*MemoryStore)(nil)
)

func (s *MemoryStore) FindByPair(ctx context.Context, low, high int64) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey{low, high}]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return *s.conversations[id], nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, low, high int64) (models.Conversation, error) {
	if low >= high {
		return models.Conversation{}, apperr.InvalidParticipants("participants must be distinct and ordered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{low, high}
	if _, ok := s.byPair[key]; ok {
		return models.Conversation{}, ErrConversationExists
	}
	s.nextConvID++
	conv := &models.Conversation{
		ID:              s.nextConvID,
		ParticipantLow:  low,
		ParticipantHigh: high,
		CreatedAt:       s.clock.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.byPair[key] = conv.ID
	return *conv, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return *conv, nil
}

func (s *MemoryStore) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	return ok && conv.HasParticipant(userID), nil
}

func (s *MemoryStore) SetWatermark(ctx context.Context, conversationID, userID int64, at time.Time) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || !conv.HasParticipant(userID) {
		return models.Conversation{}, ErrConversationNotFound
	}
	wm := &conv.DeletedAtLow
	if conv.ParticipantHigh == userID {
		wm = &conv.DeletedAtHigh
	}
	if *wm == nil || at.After(**wm) {
		t := at
		*wm = &t
	}
	return *conv, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.ConversationSummary
	for _, conv := range s.conversations {
		if !conv.HasParticipant(userID) || conv.LastMessageAt == nil || !conv.VisibleTo(userID, *conv.LastMessageAt) {
			continue
		}
		result = append(result, models.ConversationSummary{
			ConversationID: conv.ID,
			OtherUserID:    conv.Other(userID),
			LastMessageAt:  conv.LastMessageAt,
			UnreadCount:    s.unreadInLocked(conv, userID),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LastMessageAt.Equal(*b.LastMessageAt) {
			return a.ConversationID > b.ConversationID
		}
		return a.LastMessageAt.After(*b.LastMessageAt)
	})
	return result, nil
}

func (s *MemoryStore) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[in.ConversationID]
	if !ok {
		return models.Message{}, ErrConversationNotFound
	}
	createdAt := conv.NextMessageTime(s.clock.Now())
	s.nextMsgID++
	msg := &models.Message{
		ID:             s.nextMsgID,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		Body:           in.Body,
		CreatedAt:      createdAt,
	}
	s.messages[msg.ID] = msg
	s.byConv[conv.ID] = append(s.byConv[conv.ID], msg.ID)
	conv.LastMessageAt = &createdAt
	return *msg, nil
}

func (s *MemoryStore) ListVisible(ctx context.Context, conversationID int64, watermark *time.Time, after *models.Cursor, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var visible []models.Message
	for _, id := range s.byConv[conversationID] {
		m := *s.messages[id]
		if watermark != nil && !m.CreatedAt.After(*watermark) {
			continue
		}
		if after != nil && !after.Less(m) {
			continue
		}
		visible = append(visible, m)
	}
	sort.Slice(visible, func(i, j int) bool {
		return models.CursorOf(visible[i]).Less(visible[j])
	})
	if len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return *msg, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, messageID, recipientID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.RecipientID != recipientID || msg.ReadAt != nil {
		return false, nil
	}
	t := at
	msg.ReadAt = &t
	return true, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			total += s.unreadInLocked(conv, userID)
		}
	}
	return total, nil
}

func (s *MemoryStore) unreadInLocked(conv *models.Conversation, userID int64) int {
	count := 0
	for _, id := range s.byConv[conv.ID] {
		m := s.messages[id]
		if m.RecipientID == userID && m.ReadAt == nil && conv.VisibleTo(userID, m.CreatedAt) {
			count++
		}
	}
	return count
}
