// Package stream fans newly stored readings out to WebSocket clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"climalog/internal/metrics"
	"climalog/internal/modules/readings/types"

	"github.com/gorilla/websocket"
)

type Config struct {
	// BufferSize is the per-subscriber backlog; a subscriber that overflows it is dropped.
	BufferSize   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:   64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Subscription receives readings published after it was created.
type Subscription struct {
	ID     uint64
	ch     chan types.Reading
	mu     sync.Mutex
	closed bool
}

func (s *Subscription) C() <-chan types.Reading {
	return s.ch
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type Hub struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

func NewHub(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		subs:    make(map[uint64]*Subscription),
	}
}

func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	h.nextID++
	sub := &Subscription{ID: h.nextID, ch: make(chan types.Reading, h.cfg.BufferSize)}
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	h.metrics.AddStreamSubscribers(1)
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	h.mu.Unlock()

	if ok {
		sub.close()
		h.metrics.AddStreamSubscribers(-1)
	}
}

// Publish never blocks. A subscriber whose buffer is full is unsubscribed,
// which closes its channel so the client can reconnect and refetch.
func (h *Hub) Publish(r types.Reading) {
	var lagging []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- r:
		default:
			lagging = append(lagging, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range lagging {
		h.logger.Warn("stream subscriber lagging, disconnecting", "sub", sub.ID, "id", r.ID)
		h.Unsubscribe(sub)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
		h.metrics.AddStreamSubscribers(-1)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON frame sent to stream clients.
type Message struct {
	Type    string         `json:"type"`
	Reading *types.Reading `json:"reading,omitempty"`
}

// ServeWS upgrades the request and forwards every new reading until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	// Clients only listen; reading drains control frames and notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case reading, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
					time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			msg, err := json.Marshal(Message{Type: "reading", Reading: &reading})
			if err != nil {
				h.logger.Error("encode stream message", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("stream client write failed", "sub", sub.ID, "error", err)
				return
			}
		}
	}
}
