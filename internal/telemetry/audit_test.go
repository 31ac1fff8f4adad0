package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	var captured AuditEnvelope
	var headers map[string]string
	publisher.On("Publish", mock.Anything, "audit.messaging", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(AuditEnvelope)
			headers = args.Get(3).(map[string]string)
		}).
		Return(nil).Once()

	emitter := NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test", zap.NewNop())
	userID := int64(5)
	emitter.Emit(context.Background(), "INFO", "conversation hidden", "req-9", &userID, 12)

	publisher.AssertExpectations(t)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "messaging-service", captured.Service)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, int64(5), *captured.UserID)
	assert.Equal(t, int64(12), captured.Payload.ConversationID)
	assert.Equal(t, "req-9", headers["x-request-id"])
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	emitter := NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test", zap.NewNop())
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "ERROR", "boom", "req", nil, 0)
	})
	publisher.AssertExpectations(t)

	var nilEmitter *AuditEmitter
	assert.NotPanics(t, func() {
		nilEmitter.Emit(context.Background(), "INFO", "noop", "req", nil, 0)
	})
}
