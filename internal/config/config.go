package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for odds-dashboard
type Config struct {
	Server  ServerConfig
	Feed    FeedConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FeedConfig holds upstream odds feed configuration
type FeedConfig struct {
	APIKey       string
	WSURL        string // Websocket stream endpoint
	RESTBase     string // Base URL for metadata endpoints
	AckTimeout   time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// RedisConfig holds Redis configuration for the metadata cache
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	InfoTTL    time.Duration
	GamesTTL   time.Duration
	MarketsTTL time.Duration
}

// KafkaConfig holds movement event publishing configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string // Topic to publish to (odds_movements)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.ws_url", "wss://api.oddsblaze.com/v1/stream")
	v.SetDefault("feed.rest_base", "https://api.oddsblaze.com/v1")
	v.SetDefault("feed.ack_timeout", 10*time.Second)
	v.SetDefault("feed.reconnect_min", 1*time.Second)
	v.SetDefault("feed.reconnect_max", 60*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.info_ttl", 60*time.Second)
	v.SetDefault("redis.games_ttl", 30*time.Second)
	v.SetDefault("redis.markets_ttl", 30*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "odds_movements")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvPrefix("ODDS_DASHBOARD")
	v.AutomaticEnv()
	// Replace . with _ for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal to struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
