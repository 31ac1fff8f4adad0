package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/notifications"
	"messaging-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindByPair(ctx context.Context, low, high int64) (models.Conversation, error) {
	args := m.Called(ctx, low, high)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateConversation(ctx context.Context, low, high int64) (models.Conversation, error) {
	args := m.Called(ctx, low, high)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) SetWatermark(ctx context.Context, conversationID, userID int64, at time.Time) (models.Conversation, error) {
	args := m.Called(ctx, conversationID, userID, at)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListVisible(ctx context.Context, conversationID int64, watermark *time.Time, after *models.Cursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, watermark, after, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID, recipientID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, recipientID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) Exists(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) ValidateToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Publish(ctx context.Context, conversationID int64, msg models.Message) error {
	args := m.Called(ctx, conversationID, msg)
	return args.Error(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) OnNewMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *NotifierMock) OnMarkRead(ctx context.Context, userID, conversationID int64) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

func (m *NotifierMock) OnDeleteForViewer(ctx context.Context, userID, conversationID int64) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

type SinkMock struct {
	mock.Mock
}

func (m *SinkMock) Emit(ctx context.Context, event notifications.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ notifications.Sink = (*SinkMock)(nil)
var _ interface {
	Exists(context.Context, int64) (bool, error)
} = (*UserDirectoryMock)(nil)

type MessagingServiceMock struct {
	mock.Mock
}

func (m *MessagingServiceMock) Resolve(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *MessagingServiceMock) Send(ctx context.Context, senderID, recipientID int64, body string) (models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingServiceMock) SendToConversation(ctx context.Context, conversationID, senderID int64, body string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingServiceMock) ListMessages(ctx context.Context, conversationID, viewerID int64, cursor *models.Cursor, limit int) (models.MessagePage, error) {
	args := m.Called(ctx, conversationID, viewerID, cursor, limit)
	var page models.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(models.MessagePage)
	}
	return page, args.Error(1)
}

func (m *MessagingServiceMock) DeleteForViewer(ctx context.Context, conversationID, viewerID int64) error {
	args := m.Called(ctx, conversationID, viewerID)
	return args.Error(0)
}

func (m *MessagingServiceMock) MarkRead(ctx context.Context, messageID, viewerID int64) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *MessagingServiceMock) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

type UnreadServiceMock struct {
	mock.Mock
}

func (m *UnreadServiceMock) UnreadCount(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
