package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	wsKind       = "conversation"
	wsRoutingKey = "ws_events.conversations"
)

var ErrForbidden = apperr.Forbidden("not authorized for conversation")

// Authorizer checks conversation membership against the stored participant pair.
type Authorizer interface {
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// Relay forwards encoded events to other service instances.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	return o
}

// Hub fans committed messages out to the connections subscribed to each
// conversation channel. A room exists only while it has subscribers.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*subscriber]struct{}
	closed bool

	auth   Authorizer
	relay  Relay
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(auth Authorizer, opts Options, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*subscriber]struct{}),
		auth:   auth,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// SetRelay routes Publish through relay so every instance delivers the event.
func (h *Hub) SetRelay(relay Relay) {
	h.relay = relay
}

// Subscribe admits a connection to the conversation's channel once info.UserID
// is confirmed as a participant. upgrade is only called after authorization
// succeeds. The connection is served in the background until it fails or
// the hub closes.
func (h *Hub) Subscribe(ctx context.Context, conversationID int64, info ConnInfo, upgrade func() (Conn, error)) error {
	ok, err := h.auth.IsParticipant(ctx, conversationID, info.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	conn, err := upgrade()
	if err != nil {
		return err
	}

	sub := newSubscriber(conn, conversationID, info, h.opts.QueueSize)
	if !h.add(sub) {
		_ = conn.Close()
		return apperr.Unavailable("realtime hub is shutting down", nil)
	}

	observability.IncWSActive(wsKind)
	h.publishLifecycle(ctx, "ws_connect", sub, "")

	go func() {
		defer h.wg.Done()
		if err := sub.writePump(h.opts); err != nil {
			h.logger.Debug("websocket write failed", zap.String("conn_id", info.ConnID), zap.Error(err))
		}
		sub.close()
	}()
	go func() {
		defer h.wg.Done()
		err := sub.readPump(h.opts)
		sub.close()
		h.remove(sub)
		observability.DecWSActive(wsKind)

		reason := ""
		if err != nil {
			reason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishLifecycle(ctx, "ws_error", sub, reason)
			}
		}
		h.publishLifecycle(ctx, "ws_disconnect", sub, reason)
	}()
	return nil
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	room, ok := h.rooms[sub.conversationID]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[sub.conversationID] = room
	}
	room[sub] = struct{}{}
	// counted under mu so Close never waits on an unfinished Add
	h.wg.Add(2)
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sub.conversationID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.conversationID)
		}
	}
}

// Publish encodes msg as a message.sent event for the conversation channel.
// With a relay configured the event reaches local subscribers through the
// relay; if the relay fails it is still delivered locally.
func (h *Hub) Publish(ctx context.Context, conversationID int64, msg models.Message) error {
	channel := models.ChannelName(conversationID)
	payload, err := json.Marshal(models.MessageEvent{
		Event:   models.EventMessageSent,
		Channel: channel,
		Message: &msg,
	})
	if err != nil {
		return err
	}

	if h.relay != nil {
		if err := h.relay.Publish(ctx, channel, payload); err != nil {
			h.Deliver(conversationID, payload)
			return err
		}
		return nil
	}
	h.Deliver(conversationID, payload)
	return nil
}

// Deliver queues payload on every local subscriber of the conversation and
// returns how many subscribers it reached.
func (h *Hub) Deliver(conversationID int64, payload []byte) int {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.rooms[conversationID]))
	for sub := range h.rooms[conversationID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.enqueue(payload) {
			observability.IncWSDropped()
			observability.IncWSEvent(wsKind, "ws_drop")
		}
	}
	return len(subs)
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Subscribers int `json:"subscribers"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := Stats{Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		stats.Subscribers += len(room)
	}
	return stats
}

// Close disconnects every subscriber and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*subscriber
	for _, room := range h.rooms {
		for sub := range room {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.wg.Wait()
}

func (h *Hub) publishLifecycle(ctx context.Context, event string, sub *subscriber, reason string) {
	info := sub.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"resource_id": sub.conversationID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": info.identity(),
	}

	observability.IncWSEvent(wsKind, event)
	err := observability.PublishEvent(context.WithoutCancel(ctx), wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	if err != nil {
		h.logger.Debug("ws lifecycle event not published", zap.String("event", event), zap.Error(err))
	}
}
