package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// EventSale is pushed when a payment completes.
const EventSale = "sale"

// Hub maintains organizer_id -> set of back-office connections and fans out
// sales events. Uses Redis pub/sub for horizontal scaling: local broadcast
// plus publish to Redis.
type Hub struct {
	// organizerID -> map[clientID]*Client
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel Redis subscription per organizer
	mu     sync.RWMutex
	logger *zap.Logger
	pub    RedisPublisher
	sub    RedisSubscriber
}

// RedisPublisher publishes a feed event for other instances.
type RedisPublisher interface {
	PublishFeedEvent(organizerID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to an organizer's feed channel and invokes
// handler for incoming events.
type RedisSubscriber interface {
	SubscribeFeed(organizerID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a sales feed hub. pub and sub may be nil for single-instance
// deployments.
func NewHub(logger *zap.Logger, pub RedisPublisher, sub RedisSubscriber) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its organizer room. The Redis subscription for
// the room starts with the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.OrganizerID] == nil {
		h.rooms[c.OrganizerID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeFeed(c.OrganizerID, func(event string, payload []byte) {
				h.Broadcast(c.OrganizerID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OrganizerID] = cancel
			}
		}
	}
	h.rooms[c.OrganizerID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("feed client joined", zap.String("client_id", c.ID), zap.String("organizer_id", c.OrganizerID.String()))
}

// Unregister removes a client. The Redis subscription stops when the last
// client of the room leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.OrganizerID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.OrganizerID)
			if cancel, ok := h.subs[c.OrganizerID]; ok {
				cancel()
				delete(h.subs, c.OrganizerID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("feed client left", zap.String("client_id", c.ID), zap.String("organizer_id", c.OrganizerID.String()))
}

// Broadcast sends a message to all clients of one organizer (local only).
func (h *Hub) Broadcast(organizerID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[organizerID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastAndPublish sends to local clients and publishes to Redis so other
// instances deliver to theirs.
func (h *Hub) BroadcastAndPublish(organizerID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.Broadcast(organizerID, event, json.RawMessage(data))
	if h.pub != nil {
		_ = h.pub.PublishFeedEvent(organizerID, event, data)
	}
}

// ClientCount returns the number of connected clients for an organizer.
func (h *Hub) ClientCount(organizerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[organizerID])
}
