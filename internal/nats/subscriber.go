package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// SubscribeRoom subscribes this relay to a room's subject, invoking handle
// for every payload published by other relays. Subscribing to the same room
// twice is a no-op.
func (c *NATSClient) SubscribeRoom(room string, handle func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[room]; exists {
		return nil
	}

	sub, err := c.conn.Subscribe(subject(room), func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return // skip invalid frames
		}
		if env.Origin == c.relayID {
			return
		}
		handle(env.Payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to room %s: %w", room, err)
	}

	c.subs[room] = sub
	return nil
}

// UnsubscribeRoom drops this relay's subscription for a room, if any.
func (c *NATSClient) UnsubscribeRoom(room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, exists := c.subs[room]; exists {
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("failed to unsubscribe: %w", err)
		}
		delete(c.subs, room)
	}
	return nil
}
