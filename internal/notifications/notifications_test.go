package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

type sinkMock struct {
	mock.Mock
}

func (m *sinkMock) Emit(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestAMQPSinkRoutesByType(t *testing.T) {
	publisher := new(publisherMock)
	sink := NewAMQPSink(publisher)
	event := Event{Type: TypeNewMessage, RecipientID: 2, ConversationID: 5}

	publisher.On("Publish", mock.Anything, "notifications.new_message", event, mock.Anything).Return(nil).Once()

	require.NoError(t, sink.Emit(context.Background(), event))
	publisher.AssertExpectations(t)
}

func TestKafkaMessageKeyedByRecipient(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err := kafkaMessage(Event{Type: TypeUnreadCount, RecipientID: 42, ConversationID: 7, Payload: map[string]any{"unread_count": 3}, OccurredAt: at})
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "unread_count", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "unread_count", decoded["type"])
	assert.EqualValues(t, 7, decoded["conversation_id"])
}

func TestBreakerSinkOpensAfterConsecutiveFailures(t *testing.T) {
	next := new(sinkMock)
	sink := NewBreakerSink(next, 2, time.Minute, zap.NewNop())
	event := Event{Type: TypeNewMessage, RecipientID: 2}

	next.On("Emit", mock.Anything, event).Return(assert.AnError).Twice()

	assert.ErrorIs(t, sink.Emit(context.Background(), event), assert.AnError)
	assert.ErrorIs(t, sink.Emit(context.Background(), event), assert.AnError)
	assert.ErrorIs(t, sink.Emit(context.Background(), event), gobreaker.ErrOpenState)
	assert.Equal(t, "open", sink.State())
	next.AssertExpectations(t)
}

func TestBreakerSinkPassesThroughSuccess(t *testing.T) {
	next := new(sinkMock)
	sink := NewBreakerSink(next, 2, time.Minute, zap.NewNop())
	event := Event{Type: TypeUnreadCount, RecipientID: 2}

	next.On("Emit", mock.Anything, event).Return(nil).Once()

	require.NoError(t, sink.Emit(context.Background(), event))
	assert.Equal(t, "closed", sink.State())
}
