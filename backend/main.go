// A minimal downstream consumer of the gateway's integration events:
// it subscribes to the event topic and prints every finished match and
// persisted message. Useful as a smoke-test target and as a template
// for real consumers (leaderboards, archival).
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/paddlearena/realtime/broker"
)

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")
	topic := getEnv("ARCADE_BROKER_TOPIC", "arcade-events")
	log.Printf("Connecting to Redis at %s, topic %s", redisAddr, topic)

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	events, err := broker.NewRedisBroker(rdb).Subscribe(ctx, topic)
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", topic, err)
	}

	log.Println("Event consumer started. Listening...")

	for event := range events {
		data, _ := json.Marshal(event.Data)
		switch event.Kind {
		case broker.KindMatchFinished:
			log.Printf("Match finished (key=%s, server=%s): %s", event.Key, event.ServerID, data)
		case broker.KindMessagePersisted:
			log.Printf("Message persisted (channel=%s, server=%s): %s", event.Key, event.ServerID, data)
		default:
			log.Printf("Unknown event kind %q: %s", event.Kind, data)
		}
	}
}
