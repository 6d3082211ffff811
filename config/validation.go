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

	if c.Redis.Address == "" {
		return errors.New("redis address must be specified")
	}

	switch strings.ToLower(c.Broker.Type) {
	case "redis":
		// Re-uses the main Redis connection, already validated above.
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
	if c.Broker.EventChannel == "" {
		return errors.New("broker event channel must be configured")
	}

	if c.WebSocket.MaxConnections < 1 {
		return errors.New("max connections must be positive")
	}
	if c.WebSocket.HandshakeTimeout < 1 {
		return errors.New("handshake timeout must be at least 1 second")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ActivityTimeout {
		return errors.New("ping interval should be less than activity timeout")
	}
	if c.WebSocket.PresenceTTL <= c.WebSocket.ActivityTimeout {
		return errors.New("presence TTL should be greater than activity timeout")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "VIDCHAT_PORT")

	// Auth
	viper.BindEnv("auth.jwtSecret", "VIDCHAT_AUTH_JWT_SECRET")
	viper.BindEnv("auth.tokenQueryParam", "VIDCHAT_AUTH_TOKEN_PARAM")
	viper.BindEnv("auth.banListKey", "VIDCHAT_AUTH_BANLIST_KEY")

	// Redis
	viper.BindEnv("redis.address", "VIDCHAT_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "VIDCHAT_REDIS_PASSWORD")

	// Broker
	viper.BindEnv("broker.type", "VIDCHAT_BROKER_TYPE")
	viper.BindEnv("broker.eventChannel", "VIDCHAT_BROKER_EVENT_CHANNEL")
	viper.BindEnv("broker.kafka.brokers", "VIDCHAT_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "VIDCHAT_KAFKA_GROUPID")

	// WebSocket
	viper.BindEnv("websocket.maxConnections", "VIDCHAT_MAX_CONNECTIONS")
	viper.BindEnv("websocket.handshakeTimeout", "VIDCHAT_HANDSHAKE_TIMEOUT")
	viper.BindEnv("websocket.pingInterval", "VIDCHAT_PING_INTERVAL")
	viper.BindEnv("websocket.activityTimeout", "VIDCHAT_ACTIVITY_TIMEOUT")
	viper.BindEnv("websocket.writeTimeout", "VIDCHAT_WRITE_TIMEOUT")
	viper.BindEnv("websocket.presenceTTL", "VIDCHAT_PRESENCE_TTL")
}
