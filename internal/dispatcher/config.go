package dispatcher

import (
	"time"

	"runflow/internal/config"
)

// Delivery tuning that has never needed per-deployment knobs.
const (
	defaultMaxRetries       = 3
	defaultInitialBackoff   = 100 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultMaxRequeues      = 10
)

const (
	defaultBufferSize  = 10000
	defaultWorkers     = 10
	defaultHTTPTimeout = 10 * time.Second
)

// MemoryConfig sizes the in-memory dispatcher.
type MemoryConfig struct {
	BufferSize  int           // pending event capacity
	Workers     int           // concurrent delivery goroutines
	HTTPTimeout time.Duration // per-delivery request timeout
}

// LoadConfigFromEnv reads DISPATCHER_* environment variables.
func LoadConfigFromEnv() MemoryConfig {
	return MemoryConfig{
		BufferSize:  config.GetIntEnv("DISPATCHER_BUFFER_SIZE", defaultBufferSize),
		Workers:     config.GetIntEnv("DISPATCHER_WORKERS", defaultWorkers),
		HTTPTimeout: config.GetDurationEnv("DISPATCHER_HTTP_TIMEOUT", defaultHTTPTimeout),
	}.withDefaults()
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	return c
}
