package chat

import (
	"sync"

	"github.com/google/uuid"

	"courier/internal/metrics"
)

// Hub is the in-process connection registry: chat id -> set of live
// subscribers. All mutation and broadcast iteration happens under one lock;
// the buckets are small and independent, so a single lock is enough. Scoped
// to one server instance; there is no cross-process fan-out.
type Hub struct {
	mu    sync.Mutex
	chats map[uuid.UUID]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{chats: make(map[uuid.UUID]map[*Client]bool)}
}

func (h *Hub) Subscribe(chatID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bucket := h.chats[chatID]
	if bucket == nil {
		bucket = make(map[*Client]bool)
		h.chats[chatID] = bucket
	}
	bucket[c] = true
	metrics.WSConnections.Inc()
}

// Unsubscribe removes the connection and drops the chat's bucket entirely
// once it empties, so idle chats hold no memory.
func (h *Hub) Unsubscribe(chatID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bucket := h.chats[chatID]
	if bucket == nil || !bucket[c] {
		return
	}
	delete(bucket, c)
	c.closed = true
	close(c.send)
	metrics.WSConnections.Dec()
	if len(bucket) == 0 {
		delete(h.chats, chatID)
	}
}

// Reply queues a frame for a single subscriber. Going through the hub keeps
// the send serialized with any concurrent close of the client's channel; a
// client already dropped loses the frame instead of panicking the sender.
func (h *Hub) Reply(c *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// Broadcast delivers payload to every current subscriber of the chat except
// the optionally-excluded sender. Delivery is best-effort: a subscriber whose
// send buffer is full is dropped without blocking the rest.
func (h *Hub) Broadcast(chatID uuid.UUID, payload []byte, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bucket := h.chats[chatID]
	if bucket == nil {
		return
	}

	var dropped []*Client
	for c := range bucket {
		if c == exclude {
			continue
		}
		select {
		case c.send <- payload:
		default:
			dropped = append(dropped, c)
		}
	}

	for _, c := range dropped {
		delete(bucket, c)
		c.closed = true
		close(c.send)
		metrics.WSConnections.Dec()
	}
	if len(bucket) == 0 {
		delete(h.chats, chatID)
	}
}

// Subscribers reports the current subscriber count of a chat.
func (h *Hub) Subscribers(chatID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chats[chatID])
}

// Buckets reports how many chats currently hold at least one subscriber.
func (h *Hub) Buckets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chats)
}
