package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"runflow/pkg/backoff"
	"runflow/pkg/circuitbreaker"
	"runflow/pkg/cloudevent"
)

var errClosed = errors.New("dispatcher is closed")

// MetricsRecorder is an optional sink for dispatcher metrics.
type MetricsRecorder interface {
	RecordDispatcherDelivered(ctx context.Context, durationSeconds float64)
	RecordDispatcherFailed(ctx context.Context)
	RecordDispatcherDropped(ctx context.Context)
	RecordDispatcherRequeued(ctx context.Context)
	RecordDispatcherQueueSize(ctx context.Context, size int64)
}

// counters aggregates the pipeline's atomic tallies.
type counters struct {
	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	requeued  atomic.Int64
	retries   atomic.Int64
}

// MemoryDispatcher buffers events in a bounded channel and delivers them
// through a fixed worker pool. A full buffer drops the event: a slow
// callback consumer must never stall workflow progress.
type MemoryDispatcher struct {
	queue    chan *Event
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Registry
	config   MemoryConfig
	logger   *slog.Logger
	metrics  MetricsRecorder

	tally counters

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewMemory starts an in-memory dispatcher with cfg.Workers delivery
// goroutines. metrics may be nil.
func NewMemory(cfg MemoryConfig, metrics MetricsRecorder) *MemoryDispatcher {
	cfg = cfg.withDefaults()

	d := &MemoryDispatcher{
		queue:  make(chan *Event, cfg.BufferSize),
		sender: cloudevent.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		config:   cfg,
		logger:   slog.With("component", "dispatcher"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.deliveryLoop()
	}
	if metrics != nil {
		go d.gaugeLoop()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Dispatch queues an event for async delivery.
func (d *MemoryDispatcher) Dispatch(event *Event) error {
	if d.closed.Load() {
		return errClosed
	}

	select {
	case d.queue <- event:
		d.tally.queued.Add(1)
		return nil
	default:
	}

	d.tally.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDropped(context.Background())
	}
	d.logger.Warn("Event dropped, buffer full",
		"destination", destinationHost(event.Destination),
		"type", event.Payload.Type,
	)
	return ErrBufferFull
}

// Stats returns a snapshot of delivery counters.
func (d *MemoryDispatcher) Stats() Stats {
	breakers := d.breakers.Stats()
	return Stats{
		QueueDepth:    len(d.queue),
		Queued:        d.tally.queued.Load(),
		Delivered:     d.tally.delivered.Load(),
		Failed:        d.tally.failed.Load(),
		Dropped:       d.tally.dropped.Load(),
		Requeued:      d.tally.requeued.Load(),
		RetriesTotal:  d.tally.retries.Load(),
		BreakersTotal: breakers.Total,
		BreakersOpen:  breakers.Open,
	}
}

// Close stops intake and waits for workers to drain the queue, bounded by
// ctx. Events still queued when ctx expires are lost.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.logger.Info("Dispatcher shutdown complete",
			"delivered", d.tally.delivered.Load(),
			"failed", d.tally.failed.Load(),
			"dropped", d.tally.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

// gaugeLoop reports the queue depth metric until shutdown.
func (d *MemoryDispatcher) gaugeLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.metrics.RecordDispatcherQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

func (d *MemoryDispatcher) deliveryLoop() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.shutdown:
			// Drain whatever is still queued, then exit.
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver sends one event, consulting the destination's circuit breaker.
// An open circuit defers the event instead of burning retries against a
// host that is already failing.
func (d *MemoryDispatcher) deliver(event *Event) {
	host := destinationHost(event.Destination)
	breaker := d.breakers.Get(host)
	if !breaker.Allow() {
		d.reschedule(event, host)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := d.send(ctx, event)
	if err != nil {
		breaker.RecordFailure()
		d.tally.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", event.Payload.Type, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.tally.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDelivered(ctx, time.Since(start).Seconds())
	}
}

// reschedule requeues an event after the breaker cooldown. Events that
// have been deferred too many times are dropped.
func (d *MemoryDispatcher) reschedule(event *Event, host string) {
	if event.Requeues >= defaultMaxRequeues {
		d.tally.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherDropped(context.Background())
		}
		d.logger.Warn("Event dropped, max requeues reached",
			"destination", host,
			"type", event.Payload.Type,
			"requeues", event.Requeues,
		)
		return
	}

	event.Requeues++
	d.tally.requeued.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherRequeued(context.Background())
	}

	go func() {
		select {
		case <-d.shutdown:
			return
		case <-time.After(defaultBreakerCooldown):
		}

		select {
		case d.queue <- event:
			d.logger.Debug("Event requeued", "destination", host, "type", event.Payload.Type, "requeues", event.Requeues)
		case <-d.shutdown:
		default:
			d.tally.dropped.Add(1)
			if d.metrics != nil {
				d.metrics.RecordDispatcherDropped(context.Background())
			}
			d.logger.Warn("Event dropped on requeue, buffer full", "destination", host, "type", event.Payload.Type)
		}
	}()
}

// send performs the HTTP delivery with bounded retries. A 4xx response
// means the consumer rejected the event; retrying cannot help.
func (d *MemoryDispatcher) send(ctx context.Context, event *Event) error {
	opts := cloudevent.SendOptions{SigningKey: event.SigningKey}
	delay := &backoff.Config{Initial: defaultInitialBackoff, Max: defaultMaxBackoff}

	var lastErr error
	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			d.tally.retries.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Exponential(attempt, delay)):
			}
		}

		lastErr = d.sender.Send(ctx, event.Destination, event.Payload, opts)
		if lastErr == nil {
			return nil
		}
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// destinationHost keys circuit breakers by URL host.
func destinationHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*MemoryDispatcher)(nil)
