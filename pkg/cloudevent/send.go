package cloudevent

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sender delivers events over HTTP with a shared connection pool.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-request timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SendOptions controls delivery of a single event.
type SendOptions struct {
	SigningKey string // HMAC-SHA256 key; empty sends unsigned
}

// Send POSTs the event in binary mode: the JSON payload in the body, the
// envelope attributes duplicated as Ce-* headers so consumers can route
// without parsing the body.
func (s *Sender) Send(ctx context.Context, url string, event *CloudEvent, opts SendOptions) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setEnvelopeHeaders(req.Header, event)
	if opts.SigningKey != "" {
		req.Header.Set("X-Signature-256", sign(payload, opts.SigningKey))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

func setEnvelopeHeaders(h http.Header, event *CloudEvent) {
	h.Set("Content-Type", "application/cloudevents+json")
	h.Set("Ce-Specversion", event.SpecVersion)
	h.Set("Ce-Type", event.Type)
	h.Set("Ce-Source", event.Source)
	h.Set("Ce-Subject", event.Subject)
	h.Set("Ce-Id", event.ID)
	h.Set("Ce-Time", event.Time.Format(time.RFC3339))
}

// sign computes the X-Signature-256 header value for a payload.
func sign(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// HTTPError is a non-2xx delivery response.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsClientError reports whether err is a 4xx delivery response. Client
// rejections are permanent; retrying them wastes the consumer's time.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}
