package websocket

import (
	"encoding/json"

	"github.com/aithernet/airelay/internal/registry"
	"github.com/aithernet/airelay/pkg/logger"
)

// RoomBus fans room payloads out across relay processes. Implementations
// must not redeliver a relay's own publishes back to it.
type RoomBus interface {
	PublishRoom(room string, payload []byte) error
	SubscribeRoom(room string, handle func(payload []byte)) error
	UnsubscribeRoom(room string) error
}

// Hub is the broadcast engine: it delivers payloads to every open connection
// in a room and prunes connections found dead during the send. Delivery is
// best-effort and unordered across connections, FIFO per connection. A
// closed connection simply misses the message; catch-up is the history
// service's job.
type Hub struct {
	registry *registry.Registry
	bus      RoomBus
	log      logger.Logger
}

// NewHub wires the broadcast engine to a registry and an optional bus
// (nil disables cross-relay fan-out).
func NewHub(reg *registry.Registry, bus RoomBus, log logger.Logger) *Hub {
	return &Hub{registry: reg, bus: bus, log: log}
}

// Join registers the connection in a room, subscribing the relay to the
// room's bus subject on first local member. Returns the member count and the
// room the connection left, if any.
func (h *Hub) Join(room string, c registry.Conn) (count int, prev string) {
	count, prev = h.registry.Join(room, c)
	if prev != "" && len(h.registry.MembersOf(prev)) == 0 {
		h.unsubscribe(prev)
	}
	if count == 1 {
		h.subscribe(room)
	}
	return count, prev
}

// Remove drops the connection from its room, returning the room name.
func (h *Hub) Remove(c registry.Conn) string {
	room := h.registry.Remove(c)
	if room != "" && len(h.registry.MembersOf(room)) == 0 {
		h.unsubscribe(room)
	}
	return room
}

// Broadcast delivers the payload to every open connection in the room and
// mirrors it onto the bus for other relays.
func (h *Hub) Broadcast(room string, payload interface{}) {
	h.deliver(room, "", payload)
	h.publish(room, payload)
}

// BroadcastExcept is Broadcast minus one connection, used for typing updates
// which must never echo to their sender.
func (h *Hub) BroadcastExcept(room, exceptID string, payload interface{}) {
	h.deliver(room, exceptID, payload)
	h.publish(room, payload)
}

func (h *Hub) deliver(room, exceptID string, payload interface{}) {
	for _, c := range h.registry.MembersOf(room) {
		if c.ID() == exceptID {
			continue
		}
		if !c.Send(payload) {
			h.registry.Remove(c)
			h.log.Warnf("pruned dead connection %s from room %s", c.ID(), room)
		}
	}
}

func (h *Hub) publish(room string, payload interface{}) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("failed to serialize payload for room %s: %v", room, err)
		return
	}
	if err := h.bus.PublishRoom(room, data); err != nil {
		h.log.Errorf("failed to publish to room %s: %v", room, err)
	}
}

func (h *Hub) subscribe(room string) {
	if h.bus == nil {
		return
	}
	err := h.bus.SubscribeRoom(room, func(payload []byte) {
		// Remote-origin payload: local fan-out only, no re-publish.
		h.deliver(room, "", json.RawMessage(payload))
	})
	if err != nil {
		h.log.Errorf("failed to subscribe to room %s: %v", room, err)
	}
}

func (h *Hub) unsubscribe(room string) {
	if h.bus == nil {
		return
	}
	if err := h.bus.UnsubscribeRoom(room); err != nil {
		h.log.Errorf("failed to unsubscribe from room %s: %v", room, err)
	}
}
