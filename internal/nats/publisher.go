package nats

import (
	"encoding/json"
	"fmt"
)

// envelope tags each bridged payload with the publishing relay so receivers
// can drop their own frames.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// PublishRoom mirrors a room payload onto the room's subject.
func (c *NATSClient) PublishRoom(room string, payload []byte) error {
	data, err := json.Marshal(envelope{Origin: c.relayID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}
	return c.conn.Publish(subject(room), data)
}
