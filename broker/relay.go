package broker

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/paddlearena/realtime/metrics"
	"github.com/paddlearena/realtime/store"
)

// Relay publishes core events through a MessageBroker. Publishing is
// best-effort: the match or message is already persisted when the relay
// runs, so a failed publish is logged and dropped.
type Relay struct {
	broker   MessageBroker
	topic    string
	serverID string
}

func NewRelay(b MessageBroker, topic, serverID string) *Relay {
	return &Relay{broker: b, topic: topic, serverID: serverID}
}

func (r *Relay) PublishMatchFinished(ctx context.Context, rec store.MatchRecord) {
	r.publish(ctx, Message{
		Kind:      KindMatchFinished,
		Key:       rec.SessionID,
		ServerID:  r.serverID,
		Timestamp: time.Now(),
		Data:      rec,
	})
}

func (r *Relay) PublishMessage(ctx context.Context, msg *store.Message) {
	r.publish(ctx, Message{
		Kind:      KindMessagePersisted,
		Key:       strconv.FormatInt(msg.ChannelID, 10),
		ServerID:  r.serverID,
		Timestamp: time.Now(),
		Data:      msg,
	})
}

func (r *Relay) publish(ctx context.Context, message Message) {
	if err := r.broker.Publish(ctx, r.topic, message); err != nil {
		log.Printf("Failed to publish %s event: %v", message.Kind, err)
		return
	}
	metrics.BrokerMessagesPublished.WithLabelValues(r.broker.Type()).Inc()
}
