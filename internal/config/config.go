package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gigvault server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Processor ProcessorConfig
	Escrow    EscrowConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ProcessorConfig configures the external payment processor client.
// MaxAttempts bounds the automatic retry of transient failures.
type ProcessorConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
}

type EscrowConfig struct {
	// FeeRate is the platform cut taken from the authorized amount,
	// e.g. 0.10 for 10%.
	FeeRate float64
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// Load reads configuration from the environment (after a best-effort
// .env load) and returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PORT", 8080),
			Env:  envString("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MinIdleConns:    envInt("DATABASE_MIN_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: envString("REDIS_URL", "redis://127.0.0.1:6379"),
		},
		Processor: ProcessorConfig{
			BaseURL:       os.Getenv("PROCESSOR_BASE_URL"),
			APIKey:        os.Getenv("PROCESSOR_API_KEY"),
			WebhookSecret: os.Getenv("PROCESSOR_WEBHOOK_SECRET"),
			Timeout:       envDuration("PROCESSOR_TIMEOUT", 15*time.Second),
			MaxAttempts:   envInt("PROCESSOR_MAX_ATTEMPTS", 4),
			BackoffBase:   envDuration("PROCESSOR_BACKOFF_BASE", 250*time.Millisecond),
		},
		Escrow: EscrowConfig{
			FeeRate: envFloat("ESCROW_FEE_RATE", 0.10),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    envDuration("JWT_TTL", 72*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Processor.BaseURL == "" {
		return fmt.Errorf("PROCESSOR_BASE_URL is required")
	}
	if c.Processor.WebhookSecret == "" {
		return fmt.Errorf("PROCESSOR_WEBHOOK_SECRET is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Escrow.FeeRate < 0 || c.Escrow.FeeRate >= 1 {
		return fmt.Errorf("ESCROW_FEE_RATE must be in [0, 1), got %v", c.Escrow.FeeRate)
	}
	if c.Processor.MaxAttempts < 1 {
		return fmt.Errorf("PROCESSOR_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
