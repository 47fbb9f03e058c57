package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server    ServerConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Broker    BrokerConfig
	WebSocket WebSocketConfig
	Game      GameConfig
	Store     StoreConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

type AuthConfig struct {
	JWTSecret         string
	TokenQueryParam   string
	RevocationListKey string
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type BrokerConfig struct {
	Type  string // "redis" or "kafka"
	Topic string // integration events topic/channel
	Kafka KafkaConfig
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type WebSocketConfig struct {
	MessageSizeLimit int
	HandshakeTimeout int // Seconds
	PingInterval     int // Seconds
	PongTimeout      int // Seconds
	ActivityTimeout  int // Seconds
	WriteTimeout     int // Seconds
	KeepAlive        bool
	SessionTTL       int // Seconds
}

type GameConfig struct {
	TickInterval int // Milliseconds
	WinningScore int
}

type StoreConfig struct {
	SQLitePath string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("ARCADE")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			// A missing file is not fatal: defaults plus env vars fully
			// describe a runnable configuration.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
