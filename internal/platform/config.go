package platform

import (
	"time"

	"runflow/internal/config"
)

// Hardcoded client defaults - these rarely need tuning.
const (
	defaultSubmitRetries    = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	// A status poll that keeps failing is eventually surfaced instead of
	// spinning forever against a dead platform.
	maxConsecutivePollFailures = 5
)

// Config holds configuration for the platform client.
type Config struct {
	BaseURL         string        // platform API base URL (required)
	APIKey          string        // bearer token, empty = unauthenticated
	HTTPTimeout     time.Duration // per-request timeout (default: 30s)
	PollInterval    time.Duration // initial status poll interval (default: 2s)
	PollMaxInterval time.Duration // poll interval cap (default: 15s)
}

// LoadConfigFromEnv loads platform configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		BaseURL:         config.GetEnv("PLATFORM_URL", "http://localhost:8480"),
		APIKey:          config.GetSecretFile(config.GetEnv("PLATFORM_API_KEY_FILE", "")),
		HTTPTimeout:     config.GetDurationEnv("PLATFORM_HTTP_TIMEOUT", 30*time.Second),
		PollInterval:    config.GetDurationEnv("PLATFORM_POLL_INTERVAL", 2*time.Second),
		PollMaxInterval: config.GetDurationEnv("PLATFORM_POLL_MAX_INTERVAL", 15*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollMaxInterval <= 0 {
		c.PollMaxInterval = 15 * time.Second
	}
	return c
}
