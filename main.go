package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/paddlearena/realtime/broker"
	"github.com/paddlearena/realtime/chat"
	"github.com/paddlearena/realtime/config"
	"github.com/paddlearena/realtime/gateway"
	"github.com/paddlearena/realtime/match"
	"github.com/paddlearena/realtime/metrics"
	"github.com/paddlearena/realtime/mute"
	"github.com/paddlearena/realtime/presence"
	"github.com/paddlearena/realtime/rooms"
	"github.com/paddlearena/realtime/server"
	"github.com/paddlearena/realtime/services"
	"github.com/paddlearena/realtime/session"
	"github.com/paddlearena/realtime/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Best-effort .env load for local development.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Generate a unique ID for this gateway instance
	serverID := uuid.New().String()
	log.Printf("Starting gateway instance with ID: %s", serverID)

	redisClient, err := services.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer services.CloseRedisClient(redisClient)

	db, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	sessionStore := session.NewRedisStore(redisClient, time.Duration(cfg.WebSocket.SessionTTL)*time.Second)

	// --- Broker Initialization ---
	var messageBroker broker.MessageBroker
	log.Printf("Initializing message broker of type: %s", cfg.Broker.Type)
	switch strings.ToLower(cfg.Broker.Type) {
	case "redis":
		messageBroker = broker.NewRedisBroker(redisClient)
	case "kafka":
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.GroupID)
		if err != nil {
			log.Fatalf("Failed to create Kafka broker: %v", err)
		}
	default:
		// Caught by config validation; checked again as a safeguard.
		log.Fatalf("Invalid broker type specified: %s", cfg.Broker.Type)
	}
	defer messageBroker.Close()
	relay := broker.NewRelay(messageBroker, cfg.Broker.Topic, serverID)

	jwtValidator := gateway.NewJWTValidator(&cfg.Auth, redisClient)

	// Core registries
	presenceRegistry := presence.NewRegistry()
	fabric := rooms.NewFabric(presenceRegistry)
	muteLedger := mute.NewLedger(db)
	matchRegistry := match.NewRegistry(cfg.Game.WinningScore, presenceRegistry.IsOnline)
	engine := match.NewEngine(
		matchRegistry, fabric, presenceRegistry, db, relay,
		time.Duration(cfg.Game.TickInterval)*time.Millisecond)
	gate := chat.NewGate(db, db, muteLedger, fabric, relay)

	handler := gateway.NewHandler(
		presenceRegistry, fabric, muteLedger, matchRegistry, engine, gate,
		db, sessionStore, jwtValidator, cfg, serverID)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	port := ":" + strconv.Itoa(cfg.Server.Port)
	srv := server.NewServer(port, handler.HandleWebSocket,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second)

	go srv.Start()
	log.Println("Realtime gateway started on " + port)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	// Graceful shutdown: stop accepting, close live connections (their
	// read loops run the full disconnect teardown), then drain.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	presenceRegistry.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}
