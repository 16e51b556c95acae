package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `envPrefix:""`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	WebSocket WebSocketConfig `envPrefix:"WS_"`
	Notes     NotesConfig     `envPrefix:"NOTE_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Env             string        `env:"ENV" envDefault:"development"`
	APIVersion      string        `env:"API_VERSION" envDefault:"1.0.0"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Driver selects the repository backend: "couch" or "memory".
type DatabaseConfig struct {
	Driver   string `env:"DRIVER" envDefault:"couch"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5984"`
	User     string `env:"USER" envDefault:"admin"`
	Password string `env:"PASSWORD" envDefault:"password"`
	Name     string `env:"NAME" envDefault:"notevault"`
}

type JWTConfig struct {
	Secret     string        `env:"SECRET" envDefault:"dev-secret-change-in-production"`
	Expiration time.Duration `env:"EXPIRATION" envDefault:"30m"`
}

type SessionConfig struct {
	Store        string `env:"STORE" envDefault:"memory"`
	CookieName   string `env:"COOKIE_NAME" envDefault:"notevault_sid"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimitConfig struct {
	Enabled    bool   `env:"ENABLED" envDefault:"true"`
	Backend    string `env:"BACKEND" envDefault:"memory"`
	PolicyFile string `env:"POLICY_FILE"`
	// Addresses or CIDR ranges whose X-Forwarded-For and X-Real-IP headers
	// are believed. Empty means the TCP peer is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE" envDefault:"4096"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE" envDefault:"4096"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	WriteWait       time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
	PongWait        time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	PingPeriod      time.Duration `env:"PING_PERIOD" envDefault:"54s"`
	MaxConnPerUser  int           `env:"MAX_CONN_PER_USER" envDefault:"5"`
}

type NotesConfig struct {
	UpdateRetries uint `env:"UPDATE_RETRIES" envDefault:"5"`
}

type LoggingConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "couch", "memory":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be couch or memory", c.Database.Driver)
	}

	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_STORE %q: must be memory or redis", c.Session.Store)
	}

	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q: must be memory or redis", c.RateLimit.Backend)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	if c.Notes.UpdateRetries == 0 {
		return fmt.Errorf("NOTE_UPDATE_RETRIES must be at least 1")
	}

	return nil
}
