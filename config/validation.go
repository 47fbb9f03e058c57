package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret must be set")
	}
	if c.Auth.TokenQueryParam == "" {
		return errors.New("auth.tokenQueryParam must be configured")
	}

	switch strings.ToLower(c.Broker.Type) {
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for redis broker")
		}
	case "kafka":
		if len(c.Broker.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka broker")
		}
		if c.Broker.Kafka.GroupID == "" {
			return errors.New("kafka groupID must be specified for kafka broker")
		}
	default:
		return fmt.Errorf("invalid broker type: %s. Must be 'redis' or 'kafka'", c.Broker.Type)
	}
	if c.Broker.Topic == "" {
		return errors.New("broker topic must be configured")
	}

	if c.WebSocket.HandshakeTimeout < 1 {
		return errors.New("handshake timeout must be at least 1 second")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ActivityTimeout {
		return errors.New("ping interval should be less than activity timeout")
	}
	if c.WebSocket.SessionTTL <= c.WebSocket.ActivityTimeout {
		return errors.New("session TTL should be greater than activity timeout")
	}

	if c.Game.TickInterval < 1 {
		return errors.New("game tick interval must be at least 1 millisecond")
	}
	if c.Game.WinningScore < 1 {
		return errors.New("game winning score must be positive")
	}

	if c.Store.SQLitePath == "" {
		return errors.New("store sqlitePath must be configured")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "ARCADE_PORT")

	// Auth
	viper.BindEnv("auth.jwtSecret", "ARCADE_AUTH_JWT_SECRET")
	viper.BindEnv("auth.tokenQueryParam", "ARCADE_AUTH_TOKEN_PARAM")
	viper.BindEnv("auth.revocationListKey", "ARCADE_AUTH_REVOCATION_KEY")

	// Redis
	viper.BindEnv("redis.address", "ARCADE_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "ARCADE_REDIS_PASSWORD")

	// Broker
	viper.BindEnv("broker.type", "ARCADE_BROKER_TYPE")
	viper.BindEnv("broker.topic", "ARCADE_BROKER_TOPIC")
	viper.BindEnv("broker.kafka.brokers", "ARCADE_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "ARCADE_KAFKA_GROUPID")

	// WebSocket
	viper.BindEnv("websocket.handshakeTimeout", "ARCADE_HANDSHAKE_TIMEOUT")
	viper.BindEnv("websocket.pingInterval", "ARCADE_PING_INTERVAL")
	viper.BindEnv("websocket.pongTimeout", "ARCADE_PONG_TIMEOUT")
	viper.BindEnv("websocket.activityTimeout", "ARCADE_ACTIVITY_TIMEOUT")
	viper.BindEnv("websocket.writeTimeout", "ARCADE_WRITE_TIMEOUT")
	viper.BindEnv("websocket.sessionTTL", "ARCADE_SESSION_TTL")

	// Game
	viper.BindEnv("game.tickInterval", "ARCADE_GAME_TICK_INTERVAL")
	viper.BindEnv("game.winningScore", "ARCADE_GAME_WINNING_SCORE")

	// Store
	viper.BindEnv("store.sqlitePath", "ARCADE_STORE_SQLITE_PATH")
}
