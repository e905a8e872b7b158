package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/naomedical/bilingual-chat/internal/chat"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Mirror receives every broadcast payload in addition to the websocket clients.
type Mirror interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type Client struct {
	ID   string
	mu   sync.Mutex
	conn Conn
}

func (c *Client) write(messageType int, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteMessage(messageType, data)
}

// Hub fans events out to every connected client. It implements chat.Broadcaster.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	writeTimeout time.Duration
	mirror       Mirror
}

func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		writeTimeout: writeTimeout,
	}
}

// SetMirror must be called before the hub is shared.
func (h *Hub) SetMirror(m Mirror) { h.mirror = m }

func (h *Hub) Add(conn Conn) *Client {
	c := &Client{ID: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Hub] connected client_id=%s total=%d", c.ID, n)
	return c
}

// Remove is safe to call more than once for the same client.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = c.conn.Close()
	log.Printf("[Hub] disconnected client_id=%s total=%d", c.ID, n)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast writes ev to every client. A failed write drops that client only.
func (h *Hub) Broadcast(ctx context.Context, ev chat.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Hub] marshal event type=%s err=%v", ev.Type, err)
		return
	}

	for _, c := range h.snapshot() {
		if err := c.write(websocket.TextMessage, body, h.writeTimeout); err != nil {
			log.Printf("[Hub] write failed client_id=%s err=%v", c.ID, err)
			h.Remove(c)
		}
	}

	if h.mirror != nil {
		if err := h.mirror.Publish(ctx, string(ev.Type), body); err != nil {
			log.Printf("[Hub] mirror publish failed type=%s err=%v", ev.Type, err)
		}
	}
}

func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		_ = c.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), h.writeTimeout)
		h.Remove(c)
	}
}
