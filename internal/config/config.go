// Package config loads service configuration from environment variables
// and mounted secret files.
package config

import (
	"time"
)

// ServiceConfig holds process-level settings for the workflows service.
type ServiceConfig struct {
	// Port serves the workflow API.
	Port string
	// MetricsPort serves the Prometheus scrape endpoint.
	MetricsPort string
	// APIKey guards the workflow endpoints; empty disables auth.
	APIKey string
	// ShutdownDrainWait gives load balancers time to observe the failing
	// readiness probe before the servers stop. Zero skips the wait.
	ShutdownDrainWait time.Duration
}

// LoadServiceConfig reads ServiceConfig from the environment.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
	}
}
