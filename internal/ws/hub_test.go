package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type fakeConn struct {
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan []byte, 64), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	f.writes <- data
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error { return nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error                                   { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error                                  { return nil }
func (f *fakeConn) SetPongHandler(h func(appData string) error)                         {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) next(t *testing.T) models.MessageEvent {
	t.Helper()
	select {
	case data := <-f.writes:
		var event models.MessageEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	return models.MessageEvent{}
}

func (f *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.writes:
		t.Fatalf("unexpected delivery: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestHub(t *testing.T) (*Hub, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore(nil)
	hub := NewHub(store, Options{QueueSize: 8}, zap.NewNop())
	t.Cleanup(hub.Close)
	return hub, store
}

func subscribe(t *testing.T, hub *Hub, conversationID, userID int64) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	err := hub.Subscribe(context.Background(), conversationID, ConnInfo{UserID: userID, ConnectedAt: time.Now()}, func() (Conn, error) {
		return conn, nil
	})
	require.NoError(t, err)
	return conn
}

func TestSubscribeRejectsNonParticipant(t *testing.T) {
	hub, store := newTestHub(t)
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	upgraded := false
	err = hub.Subscribe(context.Background(), conv.ID, ConnInfo{UserID: 3}, func() (Conn, error) {
		upgraded = true
		return newFakeConn(), nil
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, upgraded)
	assert.Equal(t, Stats{}, hub.Stats())
}

func TestPublishDeliversOnlyToItsConversation(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	first, err := store.CreateConversation(ctx, 1, 2)
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, 1, 3)
	require.NoError(t, err)

	a := subscribe(t, hub, first.ID, 1)
	b := subscribe(t, hub, first.ID, 2)
	other := subscribe(t, hub, second.ID, 1)
	assert.Equal(t, Stats{Rooms: 2, Subscribers: 3}, hub.Stats())

	msg := models.Message{ID: 10, ConversationID: first.ID, SenderID: 1, RecipientID: 2, Body: "hi"}
	require.NoError(t, hub.Publish(ctx, first.ID, msg))

	for _, conn := range []*fakeConn{a, b} {
		event := conn.next(t)
		assert.Equal(t, models.EventMessageSent, event.Event)
		assert.Equal(t, models.ChannelName(first.ID), event.Channel)
		require.NotNil(t, event.Message)
		assert.Equal(t, "hi", event.Message.Body)
	}
	other.expectNothing(t)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	hub, store := newTestHub(t)
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)
	conn := subscribe(t, hub, conv.ID, 2)

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, hub.Publish(context.Background(), conv.ID, models.Message{ID: id, ConversationID: conv.ID}))
	}
	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, id, conn.next(t).Message.ID)
	}
}

func TestRoomRemovedAfterLastSubscriberLeaves(t *testing.T) {
	hub, store := newTestHub(t)
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	a := subscribe(t, hub, conv.ID, 1)
	b := subscribe(t, hub, conv.ID, 2)
	require.Equal(t, Stats{Rooms: 1, Subscribers: 2}, hub.Stats())

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return hub.Stats() == Stats{Rooms: 1, Subscribers: 1} }, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool { return hub.Stats() == Stats{} }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Deliver(conv.ID, []byte(`{}`)))
}

func TestSubscriberDropsOldestWhenFull(t *testing.T) {
	sub := newSubscriber(newFakeConn(), 1, ConnInfo{}, 2)

	assert.False(t, sub.enqueue([]byte("a")))
	assert.False(t, sub.enqueue([]byte("b")))
	assert.True(t, sub.enqueue([]byte("c")))

	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, sub.drain())
	assert.Empty(t, sub.drain())
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	hub := NewHub(store, Options{}, zap.NewNop())
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)
	conn := subscribe(t, hub, conv.ID, 1)

	hub.Close()

	select {
	case <-conn.closed:
	default:
		t.Fatal("connection left open")
	}
	assert.Equal(t, Stats{}, hub.Stats())

	err = hub.Subscribe(context.Background(), conv.ID, ConnInfo{UserID: 1}, func() (Conn, error) { return newFakeConn(), nil })
	assert.Error(t, err)
}

func TestHubCloseWaitsForSubscribersRacingIt(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	hub := NewHub(store, Options{}, zap.NewNop())
	conv, err := store.CreateConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	const workers = 16
	conns := make([]*fakeConn, workers)
	accepted := make([]bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		conns[i] = newFakeConn()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := hub.Subscribe(context.Background(), conv.ID, ConnInfo{UserID: 1}, func() (Conn, error) {
				return conns[i], nil
			})
			accepted[i] = err == nil
		}(i)
	}
	hub.Close()
	wg.Wait()

	// accepted subscribers are either drained by Close or rejected outright
	for i, conn := range conns {
		select {
		case <-conn.closed:
		default:
			t.Fatalf("connection %d left open (accepted=%v)", i, accepted[i])
		}
	}
	assert.Equal(t, Stats{}, hub.Stats())
}

func TestParseChannelName(t *testing.T) {
	id, ok := ParseChannelName(models.ChannelName(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"conversation.", "conversation.x", "conversation.-1", "chat.1"} {
		_, ok := ParseChannelName(bad)
		assert.False(t, ok, bad)
	}
}
