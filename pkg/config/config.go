package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultPort = 8080

// Config stores file server runtime configuration.
type Config struct {
	Port     int
	LogLevel string

	// ServeDir overrides the served root. Empty means the directory of
	// the running executable.
	ServeDir string

	// MetricsAddr enables the admin listener when non-empty.
	MetricsAddr string

	ShutdownTimeout time.Duration

	RateLimit RateLimitConfig
}

// RateLimitConfig controls optional per-client request limits.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Load reads configuration from environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := parsePort(getEnv("PORT", strconv.Itoa(DefaultPort)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            port,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ServeDir:        getEnv("SERVE_DIR", ""),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 100),
		},
	}

	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS must be positive")
		}
		if cfg.RateLimit.Burst <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_BURST must be positive")
		}
	}

	return cfg, nil
}

// Addr is the listen address on all interfaces.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid PORT %q: %w", value, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("PORT %d out of range 1-65535", port)
	}
	return port, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
