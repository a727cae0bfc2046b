package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminTopic receives every order event.
const AdminTopic = "admin"

// OrderTopic is the room of a single order's tracking page.
func OrderTopic(id uuid.UUID) string {
	return "order:" + id.String()
}

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type topicEvent struct {
	Topic string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicEvent

	// done is closed when Run returns.
	done chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled, closing
// every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, topic)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case evt := <-h.broadcast:
			message, err := json.Marshal(evt.Event)
			if err != nil {
				h.logger.Error("marshal ws event", zap.String("type", evt.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[evt.Topic] {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it.
					h.logger.Warn("dropping slow ws client", zap.String("topic", evt.Topic))
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

// Subscribe registers client unless the hub has stopped.
func (h *Hub) Subscribe(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unsubscribe removes client. It is a no-op after the hub has stopped.
func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for a topic without blocking. Events are
// dropped when the queue is full or the hub has stopped.
func (h *Hub) Broadcast(topic string, event Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- &topicEvent{Topic: topic, Event: event}:
	default:
		h.logger.Warn("ws broadcast queue full, event dropped",
			zap.String("topic", topic),
			zap.String("type", event.Type),
		)
	}
}

// PublishOrderEvent fans an order event out to the order's room and the
// admin room.
func (h *Hub) PublishOrderEvent(evt service.OrderEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal order event", zap.Error(err))
		return
	}
	e := Event{Type: evt.Type, Payload: payload}
	h.Broadcast(OrderTopic(evt.OrderID), e)
	h.Broadcast(AdminTopic, e)
}

// Subscribers reports how many clients are in topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
