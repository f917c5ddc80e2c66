package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// BaseURL is the platform API root the client talks to. Empty means the
	// embedded dev server is started and used instead.
	BaseURL     string        `env:"API_BASE_URL"`
	Env         string        `env:"ENV,          default=development"`
	LogLevel    string        `env:"LOG_LEVEL,    default=info"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT, default=30s"`

	// CredentialBackend selects where the access credential is persisted:
	// memory, badger, or redis.
	CredentialBackend string `env:"CREDENTIAL_BACKEND, default=badger"`
	BadgerDir         string `env:"BADGER_DIR,         default=.skillswap"`

	Redis RedisConfig

	// Dev server settings, only used when BaseURL is empty.
	DevServerAddr string `env:"DEVSERVER_ADDR, default=127.0.0.1:8000"`
	JWTSecret     string `env:"JWT_SECRET,     default=devserver-secret"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
