// Package live fans tournament updates out to the members watching them.
//
// A Hub keeps every subscribed client in a map keyed by topic and owns that map from a
// single goroutine (Run). Handlers publish events and the hub copies them into each
// subscriber's buffered Send channel; the HTTP layer turns that channel into a
// server-sent event stream.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ClientBuffer is how many undelivered messages a subscriber may have queued before the
// hub gives up on it.
const ClientBuffer = 16

// broadcastBuffer is how many published messages may wait for Run before Publish
// starts discarding.
const broadcastBuffer = 256

// Message is one event on a topic. Data is already JSON encoded.
type Message struct {
	Topic string // e.g. "tournament:<uuid>"
	Event string // SSE event name
	Data  []byte // SSE data line
}

// Client is a single subscriber. The hub closes Send when it drops the client, which
// happens on Unsubscribe and when the client falls too far behind. Shutdown closes it too.
type Client struct {
	Topic string
	Send  chan Message // buffered to ClientBuffer; read by the stream handler
}

// Hub routes messages to the clients subscribed to their topic.
type Hub struct {
	// mu guards clients. Run is the only writer; Subscribers reads under RLock.
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	// Channels into Run. Only register and unregister are unbuffered, so Subscribe
	// returns only after Run has taken the client.
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run exits

	log *zap.Logger
}

// NewHub returns a hub. Nothing is delivered until Run is started.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Named("live"),
	}
}

// Run processes subscriptions and broadcasts until ctx is cancelled. Every remaining
// client is closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		// First subscriber on a topic creates its set.
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.Topic] == nil {
				h.clients[c.Topic] = make(map[*Client]struct{})
			}
			h.clients[c.Topic][c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		// Never block on one subscriber: a full buffer gets it dropped instead.
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[msg.Topic] {
				select {
				case c.Send <- msg:
				default:
					// Slow consumer. Dropped here rather than via h.unregister, which only
					// this goroutine reads.
					h.log.Warn("dropping slow subscriber", zap.String("topic", msg.Topic))
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes c and closes its channel. Callers hold h.mu.
func (h *Hub) drop(c *Client) {
	// Both checks make drop idempotent, so a client is never closed twice.
	set, ok := h.clients[c.Topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	// Forget empty topics so the map does not grow with every tournament ever watched.
	if len(set) == 0 {
		delete(h.clients, c.Topic)
	}
}

// shutdown closes done, then every remaining client.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Closing done first unblocks any Subscribe or Unsubscribe waiting on Run.
	close(h.done)
	for _, set := range h.clients {
		for c := range set {
			close(c.Send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}

// Subscribe registers a new client on topic. It returns nil once the hub has stopped.
func (h *Hub) Subscribe(topic string) *Client {
	c := &Client{Topic: topic, Send: make(chan Message, ClientBuffer)}
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Unsubscribe removes c. It is safe to call for a client the hub already dropped.
func (h *Hub) Unsubscribe(c *Client) {
	if c == nil {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish encodes v as JSON and queues it for every subscriber of topic. It never blocks:
// when the hub is saturated the message is discarded and logged.
func (h *Hub) Publish(topic, event string, v any) error {
	// Encode once here rather than once per subscriber.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	select {
	case h.broadcast <- Message{Topic: topic, Event: event, Data: data}:
	case <-h.done:
	default:
		h.log.Warn("broadcast queue full, discarding event", zap.String("topic", topic), zap.String("event", event))
	}
	return nil
}

// Subscribers reports how many clients are listening on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
