// Package dispatcher delivers workflow lifecycle events to callback URLs
// asynchronously: events are buffered, sent by a worker pool with retries,
// and unhealthy destinations are isolated behind per-host circuit breakers.
package dispatcher

import (
	"context"
	"errors"

	"runflow/pkg/cloudevent"
)

// ErrBufferFull reports that the delivery buffer was full and the event
// was dropped rather than queued.
var ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

// Dispatcher is the async event delivery contract. The in-memory
// implementation is the only one today; a broker-backed one would satisfy
// the same interface.
type Dispatcher interface {
	// Dispatch queues an event without blocking. Returns ErrBufferFull
	// when the buffer has no room.
	Dispatch(event *Event) error

	// Stats returns a snapshot of delivery counters.
	Stats() Stats

	// Close drains queued events, bounded by the context deadline.
	Close(ctx context.Context) error
}

// Event pairs a lifecycle payload with its delivery destination.
type Event struct {
	Payload     *cloudevent.CloudEvent
	Destination string // callback URL
	SigningKey  string // HMAC key, empty = unsigned delivery
	Requeues    int    // deferrals due to an open circuit, managed internally
}

// Stats is a point-in-time snapshot of the delivery pipeline.
type Stats struct {
	QueueDepth    int   `json:"queueDepth"`
	Queued        int64 `json:"queued"`
	Delivered     int64 `json:"delivered"`
	Failed        int64 `json:"failed"` // exhausted retries or 4xx rejection
	Dropped       int64 `json:"dropped"`
	Requeued      int64 `json:"requeued"`
	RetriesTotal  int64 `json:"retriesTotal"`
	BreakersTotal int   `json:"breakersTotal"`
	BreakersOpen  int   `json:"breakersOpen"`
}
