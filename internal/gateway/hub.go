// Package gateway fans refresh signals out to the websocket clients
// connected to this instance.
package gateway

import (
	"context"
	"sync"

	"github.com/duynhne/chat-service/internal/metrics"
	"github.com/duynhne/chat-service/internal/notify"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

const (
	TopicMessages = "/topic/chat.messages.update"
	TopicUsers    = "/topic/chat.users.update"
)

const (
	FrameSubscribe   = "SUBSCRIBE"
	FrameUnsubscribe = "UNSUBSCRIBE"
	FrameMessage     = "MESSAGE"
	FrameError       = "ERROR"
)

// sendBuffer is the number of frames a slow client may lag behind.
const sendBuffer = 16

// Frame is the single JSON shape exchanged over the socket in both directions.
type Frame struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
	Body        string `json:"body"`
}

// Client is one websocket session.
type Client struct {
	sessionID string
	send      chan Frame

	mu     sync.Mutex
	topics map[string]struct{}
}

func newClient(sessionID string) *Client {
	return &Client{
		sessionID: sessionID,
		send:      make(chan Frame, sendBuffer),
		topics:    make(map[string]struct{}),
	}
}

// SessionID returns the id assigned at upgrade.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) subscribe(topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *Client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

// Hub holds the clients of this instance. Peers on other instances are
// reached through the notification bus, never directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a Hub with no clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.sessionID] = c
	h.mu.Unlock()
}

// unregister closes the client's send channel; the write pump exits on it.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.sessionID]; !ok {
		return
	}
	delete(h.clients, c.sessionID)
	close(c.send)
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PushToAll queues a MESSAGE frame for every client subscribed to topic and
// returns how many were queued. It never blocks: a client with a full buffer
// misses the frame and catches up on its next refresh.
func (h *Hub) PushToAll(topic, body string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frame := Frame{Type: FrameMessage, Destination: topic, Body: body}
	queued := 0
	for _, c := range h.clients {
		if !c.subscribed(topic) {
			continue
		}
		select {
		case c.send <- frame:
			queued++
		default:
			metrics.GatewayDropped.WithLabelValues(topic).Inc()
		}
	}
	metrics.GatewayPushes.WithLabelValues(topic).Add(float64(queued))
	return queued
}

// HandleNotification is the bus handler: each kind maps to one topic.
func (h *Hub) HandleNotification(ctx context.Context, n notify.Notification) {
	var topic string
	switch n.Type {
	case notify.MessagesUpdated:
		topic = TopicMessages
	case notify.UsersUpdated:
		topic = TopicUsers
	default:
		pkgzerolog.FromContext(ctx).Warn().Str("type", string(n.Type)).Msg("Dropping notification of unknown type")
		return
	}
	queued := h.PushToAll(topic, "")
	pkgzerolog.FromContext(ctx).Debug().Str("topic", topic).Int("clients", queued).Msg("Pushed refresh")
}
