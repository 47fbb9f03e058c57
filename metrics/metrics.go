package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket Metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_received_total",
		Help: "The total number of event frames received from clients.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_sent_total",
		Help: "The total number of event frames sent to clients.",
	})

	// Room Fabric Metrics
	BroadcastDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rooms_broadcast_deliveries_total",
		Help: "The total number of per-connection broadcast deliveries.",
	})
	BroadcastSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rooms_broadcast_suppressed_total",
		Help: "The total number of deliveries suppressed by block exclusion.",
	})

	// Match Metrics
	ActiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_sessions_active",
		Help: "The current number of match sessions in the registry.",
	})
	MatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_sessions_finished_total",
		Help: "The total number of finished matches.",
	}, []string{"outcome"}) // "played" or "forfeit"

	// Auth Metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_success_total",
		Help: "The total number of successful authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "The total number of failed authentications.",
	}, []string{"reason"})

	// Broker Metrics
	BrokerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_messages_published_total",
		Help: "The total number of events published to the message broker.",
	}, []string{"broker_type"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
