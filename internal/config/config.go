package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// BackendRPC talks to a deployed contract through an Ethereum JSON-RPC node.
	BackendRPC = "rpc"
	// BackendMemory runs the in-process contract, for local development.
	BackendMemory = "memory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string        `env:"APP_NAME" envDefault:"DMSD"`
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Locale          string        `env:"LOCALE" envDefault:"fr"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	RPCURL          string        `env:"RPC_URL"`
	ChainID         int64         `env:"CHAIN_ID" envDefault:"31337"`
	ContractAddress string        `env:"CONTRACT_ADDRESS" envDefault:"0x65aCd2dD683E6F3E803393CD6A75782Ab806A447"`
	ContractBackend string        `env:"CONTRACT_BACKEND" envDefault:"memory"`
	SignerKeys      []string      `env:"SIGNER_KEYS" envSeparator:","`
	JWTSecret       string        `env:"JWT_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	ChallengeTTL    time.Duration `env:"CHALLENGE_TTL" envDefault:"5m"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	ShutdownPeriod  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TxTimeout       time.Duration `env:"TX_TIMEOUT" envDefault:"2m"`
	RPCMaxRetries   uint          `env:"RPC_MAX_RETRIES" envDefault:"4"`
	ConnectRetries  uint          `env:"CONNECT_RETRIES" envDefault:"5"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
}

// Load reads an optional .env file, then populates a Config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse populates a Config from the current environment and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.ContractBackend = strings.ToLower(cfg.ContractBackend)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.ContractBackend {
	case BackendMemory:
	case BackendRPC:
		if c.RPCURL == "" {
			return fmt.Errorf("RPC_URL must be set when CONTRACT_BACKEND=%s", BackendRPC)
		}
	default:
		return fmt.Errorf("invalid CONTRACT_BACKEND %q", c.ContractBackend)
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("invalid CHAIN_ID %d", c.ChainID)
	}

	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	return nil
}

// IsDev reports whether the app runs in a development-like environment where
// Postgres, Redis and the JWT secret may fall back to in-process defaults.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

const devJWTSecret = "dmsd-development-secret"

// SigningSecret returns the HMAC key for session tokens. Development
// environments without JWT_SECRET share a fixed key.
func (c Config) SigningSecret() []byte {
	if c.JWTSecret == "" {
		return []byte(devJWTSecret)
	}
	return []byte(c.JWTSecret)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
