package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/notifications"
)

func TestUnreadCoordinatorEmitsNewMessageEvent(t *testing.T) {
	counter := new(mocks.MessageRepositoryMock)
	sink := new(mocks.SinkMock)
	counter.On("CountUnread", mock.Anything, int64(2)).Return(6, nil).Once()
	sink.On("Emit", mock.Anything, mock.MatchedBy(func(e notifications.Event) bool {
		return e.Type == notifications.TypeNewMessage &&
			e.RecipientID == 2 &&
			e.ConversationID == 9 &&
			e.Payload["unread_count"] == 6
	})).Return(nil).Once()

	coordinator := NewUnreadCoordinator(counter, sink, newManualClock(), zap.NewNop())
	err := coordinator.OnNewMessage(context.Background(), models.Message{ID: 1, ConversationID: 9, SenderID: 1, RecipientID: 2})

	assert.NoError(t, err)
	counter.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestUnreadCoordinatorReportsFailures(t *testing.T) {
	counter := new(mocks.MessageRepositoryMock)
	sink := new(mocks.SinkMock)
	counter.On("CountUnread", mock.Anything, int64(2)).Return(0, assert.AnError).Once()
	counter.On("CountUnread", mock.Anything, int64(3)).Return(1, nil).Once()
	sink.On("Emit", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	coordinator := NewUnreadCoordinator(counter, sink, newManualClock(), zap.NewNop())

	assert.ErrorIs(t, coordinator.OnMarkRead(context.Background(), 2, 9), assert.AnError)
	assert.ErrorIs(t, coordinator.OnDeleteForViewer(context.Background(), 3, 9), assert.AnError)
	sink.AssertNumberOfCalls(t, "Emit", 1)
}
