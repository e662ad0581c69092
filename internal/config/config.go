// Package config loads the storefront configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// BackendURL is the base URL of the storefront backend, without /api.
	BackendURL string

	// DataPath is the SQLite file holding persisted local state.
	DataPath string

	// RedisAddr, when set, selects the Redis local-state backend instead of
	// SQLite (kiosk / shared deployments).
	RedisAddr string

	// DemoMode gates the simulated payment path. Never enable in production.
	DemoMode bool

	// Language is the preferred display language ("de" or "en").
	Language string

	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	ProcessingDelay time.Duration
	LogLevel        string
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8000"),
		DataPath:        getEnv("DATA_PATH", "./storefront.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		DemoMode:        getEnvBool("DEMO_MODE", false),
		Language:        getEnv("LANGUAGE", "de"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:  getEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		ProcessingDelay: getEnvDuration("PROCESSING_DELAY", 1500*time.Millisecond),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
