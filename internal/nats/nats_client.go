package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSClient bridges room broadcasts between relay processes. Every local
// broadcast is mirrored on the room's subject; frames published by this
// relay are filtered out on receipt so nothing is delivered twice.
type NATSClient struct {
	conn    *nats.Conn
	relayID string

	mu   sync.Mutex
	subs map[string]*nats.Subscription // one subscription per room
}

func NewNATSClient(url, relayID string) (*NATSClient, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:    nc,
		relayID: relayID,
		subs:    make(map[string]*nats.Subscription),
	}, nil
}

func (c *NATSClient) Close() {
	c.mu.Lock()
	for room, sub := range c.subs {
		_ = sub.Unsubscribe()
		delete(c.subs, room)
	}
	c.mu.Unlock()
	c.conn.Close()
}

func subject(room string) string {
	return fmt.Sprintf("chat.room.%s", room)
}
