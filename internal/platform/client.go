// Package platform implements the run.Client interface against the remote
// run-orchestration platform's REST API. Job execution, artifact storage and
// log streaming all live on the platform side; this client only submits run
// requests and observes their status.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"runflow/internal/apperrors"
	"runflow/internal/run"
	"runflow/pkg/backoff"
	"runflow/pkg/circuitbreaker"
)

// errCircuitOpen is returned while the platform breaker is cooling down.
var errCircuitOpen = errors.New("platform circuit open")

// MetricsRecorder is an optional interface for recording platform call metrics.
type MetricsRecorder interface {
	RecordPlatformRequest(ctx context.Context, op string, success bool, durationSeconds float64)
}

// Client talks to the platform over HTTP.
//
// The platform is the source of truth for run state; the client holds no
// state beyond connection plumbing. Submit and Refresh are single round
// trips, AwaitTerminal polls with bounded exponential backoff.
type Client struct {
	http    *http.Client
	config  Config
	breaker *circuitbreaker.Breaker
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewClient creates a new platform client.
func NewClient(cfg Config, metrics MetricsRecorder) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		http: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config: cfg,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		metrics: metrics,
		logger:  slog.With("component", "platform"),
	}
}

// runResponse is the platform's status query response.
type runResponse struct {
	ID            string    `json:"id"`
	State         run.State `json:"state"`
	ExitCode      *int      `json:"exitCode,omitempty"`
	Error         string    `json:"error,omitempty"`
	OutputLocator string    `json:"outputLocator,omitempty"`
}

func (r *runResponse) handle() *run.Handle {
	return &run.Handle{
		ID:            r.ID,
		State:         r.State,
		ExitCode:      r.ExitCode,
		Error:         r.Error,
		OutputLocator: r.OutputLocator,
	}
}

// Submit requests creation of a remote run.
// Platform rejections (4xx) surface as submission errors and are never
// retried; transport errors and 5xx are retried with backoff.
func (c *Client) Submit(ctx context.Context, req *run.Request) (*run.Handle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Internal("platform.submit", err)
	}

	var resp *runResponse
	var lastErr error
	for attempt := range defaultSubmitRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.Internal("platform.submit", ctx.Err())
			case <-time.After(backoff.Exponential(attempt, nil)):
			}
		}

		resp, lastErr = c.roundTrip(ctx, http.MethodPost, c.config.BaseURL+"/v1/runs", body, "submit")
		if lastErr == nil {
			return resp.handle(), nil
		}

		var httpErr *httpError
		if errors.As(lastErr, &httpErr) && httpErr.clientError() {
			return nil, apperrors.Submission("platform.submit", lastErr)
		}
	}

	return nil, apperrors.Internal("platform.submit", lastErr)
}

// Refresh performs one status round trip for the run behind h.
//
// Terminal states are sticky: once a handle has observed a terminal state,
// a contradictory or backward platform response never rewinds it.
func (c *Client) Refresh(ctx context.Context, h *run.Handle) (*run.Handle, error) {
	resp, err := c.roundTrip(ctx, http.MethodGet, c.config.BaseURL+"/v1/runs/"+h.ID, nil, "refresh")
	if err != nil {
		var httpErr *httpError
		if errors.As(err, &httpErr) && httpErr.status == http.StatusNotFound {
			return nil, apperrors.NotFound("run", h.ID)
		}
		return nil, apperrors.Internal("platform.refresh", err)
	}

	fresh := resp.handle()
	if h.State.Terminal() && fresh.State != h.State {
		c.logger.Warn("Platform reported a state change after terminal, keeping terminal state",
			"runId", h.ID, "terminal", h.State, "reported", fresh.State)
		fresh.State = h.State
	} else if fresh.State.Before(h.State) {
		// Stale read from the platform; state only moves forward.
		fresh.State = h.State
	}
	return fresh, nil
}

// Ready checks if the platform API is reachable.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/ping", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("platform ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// roundTrip performs one HTTP exchange and decodes the run response.
// The circuit breaker tracks transport errors and 5xx responses only; a 4xx
// means the platform is healthy and rejecting us.
func (c *Client) roundTrip(ctx context.Context, method, url string, body []byte, op string) (*runResponse, error) {
	if !c.breaker.Allow() {
		return nil, errCircuitOpen
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		c.record(ctx, op, false, time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		c.record(ctx, op, false, time.Since(start).Seconds())
		return nil, &httpError{status: resp.StatusCode, body: readErrorBody(resp.Body)}
	}
	c.breaker.RecordSuccess()

	if resp.StatusCode >= 400 {
		c.record(ctx, op, false, time.Since(start).Seconds())
		return nil, &httpError{status: resp.StatusCode, body: readErrorBody(resp.Body)}
	}

	var decoded runResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.record(ctx, op, false, time.Since(start).Seconds())
		return nil, fmt.Errorf("invalid platform response: %w", err)
	}

	c.record(ctx, op, true, time.Since(start).Seconds())
	return &decoded, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *Client) record(ctx context.Context, op string, success bool, seconds float64) {
	if c.metrics != nil {
		c.metrics.RecordPlatformRequest(ctx, op, success, seconds)
	}
}

// readErrorBody extracts a short error message from a response body.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &decoded) == nil && decoded.Error != "" {
		return decoded.Error
	}
	return string(bytes.TrimSpace(data))
}

// httpError represents a non-2xx platform response.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
	}
	return fmt.Sprintf("HTTP %d", e.status)
}

func (e *httpError) clientError() bool {
	return e.status >= 400 && e.status < 500
}

// Verify Client implements run.Client
var _ run.Client = (*Client)(nil)
