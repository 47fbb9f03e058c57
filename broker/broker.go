// Package broker relays integration events (finished matches, persisted
// messages) to downstream consumers over Redis pub/sub or Kafka.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Event kinds relayed downstream.
const (
	KindMatchFinished    = "matchFinished"
	KindMessagePersisted = "messagePersisted"
)

// Message is one integration event.
type Message struct {
	Kind      string    `json:"kind"`
	Key       string    `json:"key"` // session id or channel id; also the partition key
	ServerID  string    `json:"server_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis publishes.
func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Message) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

// MessageBroker abstracts the transport carrying integration events.
type MessageBroker interface {
	Publish(ctx context.Context, topic string, message Message) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
	Type() string
}
