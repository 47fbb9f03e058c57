package broker

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
)

// RedisBroker implements MessageBroker on Redis pub/sub. It can share
// the client used by the session store.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, message Message) error {
	return b.client.Publish(ctx, topic, message).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	// Wait for the subscription to be confirmed before handing the
	// channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	messages := make(chan Message, 100)
	go func() {
		defer close(messages)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var message Message
				if err := json.Unmarshal([]byte(raw.Payload), &message); err != nil {
					log.Printf("Message decode error: %v", err)
					continue
				}
				select {
				case messages <- message:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return messages, nil
}

func (b *RedisBroker) Close() error {
	// The client is owned by the caller and may be shared.
	return nil
}

func (b *RedisBroker) Type() string {
	return "redis"
}
