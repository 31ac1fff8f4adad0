package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn a subscriber drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// subscriber is one connection admitted to a conversation channel. Outbound
// payloads sit in a bounded queue; when it is full the oldest entry is
// dropped so a slow reader never blocks the publisher.
type subscriber struct {
	conn           Conn
	conversationID int64
	info           ConnInfo

	mu       sync.Mutex
	queue    [][]byte
	maxQueue int

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(conn Conn, conversationID int64, info ConnInfo, maxQueue int) *subscriber {
	if maxQueue <= 0 {
		maxQueue = 1
	}
	return &subscriber{
		conn:           conn,
		conversationID: conversationID,
		info:           info,
		maxQueue:       maxQueue,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// enqueue adds payload and reports whether an older payload was dropped.
func (s *subscriber) enqueue(payload []byte) bool {
	s.mu.Lock()
	dropped := false
	if len(s.queue) >= s.maxQueue {
		s.queue[0] = nil
		s.queue = s.queue[1:]
		dropped = true
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (s *subscriber) drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump is the only writer of the connection.
func (s *subscriber) writePump(opts Options) error {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(opts.WriteTimeout))
			return nil
		case <-s.notify:
			for _, payload := range s.drain() {
				_ = s.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// readPump consumes client frames until the connection fails. Clients only
// send pongs and close frames; other frames are discarded.
func (s *subscriber) readPump(opts Options) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
