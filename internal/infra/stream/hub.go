package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trade_core/internal/infra"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	sendBuffer   = 64
)

// Hub fans out order and trade updates to websocket subscribers.
// Publish is fire-and-forget: a subscriber that cannot keep up is dropped,
// it never blocks matching. Implements domain.Notifier.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	upgrader    websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Publish serializes v and sends it to every live subscriber.
func (h *Hub) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("stream: failed to serialize update", slog.Any("error", err))
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for sub := range h.subscribers {
		select {
		case sub.send <- b:
		default:
			slow = append(slow, sub) // DROP
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.unregister(sub)
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeWS upgrades an HTTP request to a websocket subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream: upgrade failed", slog.Any("error", err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	infra.GlobalMetrics.IncrementStreams()

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.send:
			if !ok {
				sub.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeTimeout))
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(sub)
				return
			}
		}
	}
}

// readLoop discards inbound messages; its job is to notice a closed peer.
func (h *Hub) readLoop(sub *subscriber) {
	sub.conn.SetReadDeadline(time.Now().Add(readTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.unregister(sub)
			return
		}
	}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	if ok {
		delete(h.subscribers, sub)
	}
	h.mu.Unlock()
	if ok {
		close(sub.send)
		sub.conn.Close()
		infra.GlobalMetrics.DecrementStreams()
	}
}
