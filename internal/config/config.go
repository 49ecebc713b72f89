package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type (
	// Client is the configuration for the interactive client binary.
	Client struct {
		// PrivateKey is the 64-hex-character identity seed. Absence is a
		// fatal startup error.
		PrivateKey string   `env:"PRIVATE_KEY,required"`
		Relays     []string `env:"RELAYS" envSeparator:"," envDefault:"ws://localhost:9090/ws"`
		RedisAddr  string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		// ClientName prefills the profile name when publishing metadata.
		ClientName string `env:"CLIENT_NAME"`
		LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	}

	// Relay is the configuration for the development relay binary.
	Relay struct {
		ListenAddr string `env:"LISTEN_ADDR" envDefault:"localhost:9090"`
		MongoURI   string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
		MongoDB    string `env:"MONGO_DB" envDefault:"group_chat"`
		RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	}
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
