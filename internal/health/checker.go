// Package health implements the liveness and readiness probes.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker is satisfied by the platform client; readiness means
// the run platform answers a ping.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status classifies a probe result.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult is one dependency's probe outcome.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the probe response body.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// cacheTTL bounds how often readiness actually pings the platform.
const cacheTTL = time.Second

// Checker answers the probe endpoints. Readiness results are cached
// briefly so probe traffic does not hammer the platform.
type Checker struct {
	platform ReadinessChecker
	timeout  time.Duration

	mu           sync.RWMutex
	cached       *Response
	cachedAt     time.Time
	shuttingDown bool
}

// NewChecker creates a checker over the given platform client.
func NewChecker(platform ReadinessChecker) *Checker {
	return &Checker{
		platform: platform,
		timeout:  5 * time.Second,
	}
}

// Liveness reports process health only. It must not depend on external
// services; failing it restarts the container.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness reports whether the service should receive traffic. During
// shutdown it fails immediately so load balancers drain the instance.
func (c *Checker) Readiness(ctx context.Context) *Response {
	if resp, ok := c.cachedResponse(); ok {
		return resp
	}

	resp := &Response{
		Status: StatusHealthy,
		Checks: map[string]CheckResult{},
	}
	platformCheck := c.checkPlatform(ctx)
	resp.Checks["platform"] = platformCheck
	if platformCheck.Status != StatusHealthy {
		resp.Status = StatusUnhealthy
	}

	c.mu.Lock()
	c.cached = resp
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return resp
}

// cachedResponse returns a recent readiness result, or the shutdown
// response once draining has begun.
func (c *Checker) cachedResponse() (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shuttingDown {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}, true
	}
	if c.cached != nil && time.Since(c.cachedAt) < cacheTTL {
		return c.cached, true
	}
	return nil, false
}

func (c *Checker) checkPlatform(ctx context.Context) CheckResult {
	if c.platform == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "platform client not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.platform.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes readiness fail from now on. The cached result is
// discarded so the flip is immediate.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cached = nil
}
