// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type HTTP struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}

type Postgres struct {
	URL string `envconfig:"DATABASE_URL" required:"true"`
}

type Redis struct {
	URL      string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	CacheTTL time.Duration `envconfig:"PROGRESS_CACHE_TTL" default:"720h"`
}

type NATS struct {
	Enabled       bool          `envconfig:"NATS_ENABLED" default:"false"`
	URL           string        `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	MaxReconnects int           `envconfig:"NATS_MAX_RECONNECTS" default:"10"`
	ReconnectWait time.Duration `envconfig:"NATS_RECONNECT_WAIT" default:"2s"`
}

type Session struct {
	Secret string `envconfig:"SESSION_SECRET" required:"true"`
}

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"play-activity"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTP        HTTP
	Postgres    Postgres
	Redis       Redis
	NATS        NATS
	Session     Session
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
