package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func setupWSServer(t *testing.T, hub *Hub, validator *mocks.TokenValidatorMock) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/conversations/:id", NewConversationWebSocketHandler(hub, validator).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConversationWebSocketReceivesMessages(t *testing.T) {
	hub, store := newTestHub(t)
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)
	validator := new(mocks.TokenValidatorMock)
	validator.On("ValidateToken", mock.Anything, "tok").Return(int64(2), nil).Once()
	base := setupWSServer(t, hub, validator)

	client, resp, err := websocket.DefaultDialer.Dial(base+"/ws/conversations/1?token=tok", nil)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.Stats().Subscribers == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), conv.ID, models.Message{ID: 3, ConversationID: conv.ID, Body: "live"}))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.MessageEvent
	require.NoError(t, client.ReadJSON(&event))
	assert.Equal(t, "message.sent", event.Event)
	assert.Equal(t, "conversation.1", event.Channel)
	assert.Equal(t, "live", event.Message.Body)
	validator.AssertExpectations(t)
}

func TestConversationWebSocketRejections(t *testing.T) {
	hub, store := newTestHub(t)
	_, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)
	validator := new(mocks.TokenValidatorMock)
	validator.On("ValidateToken", mock.Anything, "outsider").Return(int64(9), nil)
	validator.On("ValidateToken", mock.Anything, "bad").Return(int64(0), errors.New("invalid"))
	base := setupWSServer(t, hub, validator)

	cases := []struct {
		name   string
		path   string
		header http.Header
		status int
	}{
		{"bad id", "/ws/conversations/abc?token=outsider", nil, http.StatusBadRequest},
		{"missing token", "/ws/conversations/1", nil, http.StatusUnauthorized},
		{"invalid token", "/ws/conversations/1?token=bad", nil, http.StatusUnauthorized},
		{"not participant", "/ws/conversations/1?token=outsider", nil, http.StatusForbidden},
		{"header token", "/ws/conversations/1", http.Header{"Authorization": {"Bearer outsider"}}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(base+tc.path, tc.header)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Equal(t, Stats{}, hub.Stats())
}
