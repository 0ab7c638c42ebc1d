package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration, read once in main and passed
// explicitly to each component. Variables carry the CHANNELLINK_ prefix.
type Config struct {
	// Port serves the ops endpoints (/health, /metrics, /links).
	Port string `envconfig:"PORT" default:"3000"`

	// DBPath locates the SQLite link database; created on first run.
	DBPath string `envconfig:"DB_PATH" default:"./data/links.db"`

	// GatewayURL is the presence event source WebSocket endpoint.
	GatewayURL string `envconfig:"GATEWAY_URL" default:"ws://localhost:4000/ws"`

	// RoomAPIURL is the room-management REST endpoint.
	RoomAPIURL string `envconfig:"ROOM_API_URL" default:"http://localhost:4000"`

	// BotToken authenticates against the gateway and the room API.
	BotToken string `envconfig:"BOT_TOKEN"`

	// LocalMode swaps the room API for the in-process implementation so the
	// service can run without a room-management backend.
	LocalMode bool `envconfig:"LOCAL_MODE" default:"false"`

	// ShutdownTimeout bounds the graceful HTTP shutdown; in-flight presence
	// work is always drained fully regardless.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("channellink", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
