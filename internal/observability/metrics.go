package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Bucket boundaries per concern. HTTP and callback delivery are
// sub-second; workflows and steps run for minutes to hours.
var (
	httpBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	workflowBuckets = []float64{1, 5, 10, 30, 60, 300, 900, 1800, 3600, 7200, 14400}
	stepBuckets     = []float64{1, 5, 10, 30, 60, 300, 900, 1800, 3600, 7200}
	platformBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	deliveryBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// Metrics holds the service's instruments, covering latency, traffic,
// errors, and saturation for each subsystem.
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	WorkflowDuration    metric.Float64Histogram
	WorkflowsTotal      metric.Int64Counter
	WorkflowErrorsTotal metric.Int64Counter
	WorkflowsActive     metric.Int64UpDownCounter

	StepDuration    metric.Float64Histogram
	StepsTotal      metric.Int64Counter
	StepErrorsTotal metric.Int64Counter

	PlatformDuration    metric.Float64Histogram
	PlatformErrorsTotal metric.Int64Counter

	DispatcherDuration  metric.Float64Histogram
	DispatcherDelivered metric.Int64Counter
	DispatcherFailed    metric.Int64Counter
	DispatcherDropped   metric.Int64Counter
	DispatcherRequeued  metric.Int64Counter
	DispatcherQueueSize metric.Int64Gauge
}

// instruments creates meters while accumulating the first error, so
// NewMetrics reads as a flat list instead of twenty err checks.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) histogram(name, desc string, buckets []float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(
		name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	b.err = err
	return h
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.err = err
	return c
}

func (b *instruments) upDownCounter(name, desc string) metric.Int64UpDownCounter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.err = err
	return c
}

func (b *instruments) gauge(name, desc string) metric.Int64Gauge {
	if b.err != nil {
		return nil
	}
	g, err := b.meter.Int64Gauge(name, metric.WithDescription(desc))
	b.err = err
	return g
}

// NewMetrics registers all instruments against a Prometheus exporter
// and returns the scrape handler alongside them.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	b := &instruments{meter: provider.Meter("runflow")}
	m := &Metrics{
		meter: b.meter,

		HTTPRequestDuration: b.histogram("http_request_duration_seconds", "HTTP request latency in seconds", httpBuckets),
		HTTPRequestsTotal:   b.counter("http_requests_total", "Total number of HTTP requests"),
		HTTPErrorsTotal:     b.counter("http_errors_total", "Total number of HTTP errors (4xx and 5xx)"),

		WorkflowDuration:    b.histogram("workflow_duration_seconds", "Workflow execution duration in seconds", workflowBuckets),
		WorkflowsTotal:      b.counter("workflows_total", "Total number of workflows accepted"),
		WorkflowErrorsTotal: b.counter("workflow_errors_total", "Total number of aborted workflows"),
		WorkflowsActive:     b.upDownCounter("workflows_active", "Number of currently running workflows (saturation)"),

		StepDuration:    b.histogram("step_duration_seconds", "Step duration from submission to terminal state in seconds", stepBuckets),
		StepsTotal:      b.counter("steps_total", "Total number of steps submitted"),
		StepErrorsTotal: b.counter("step_errors_total", "Total number of steps ending in a non-complete terminal state"),

		PlatformDuration:    b.histogram("platform_request_duration_seconds", "Run platform API request latency in seconds", platformBuckets),
		PlatformErrorsTotal: b.counter("platform_errors_total", "Total number of failed run platform API requests"),

		DispatcherDuration:  b.histogram("dispatcher_duration_seconds", "Callback delivery latency in seconds", deliveryBuckets),
		DispatcherDelivered: b.counter("dispatcher_delivered_total", "Total events successfully delivered"),
		DispatcherFailed:    b.counter("dispatcher_failed_total", "Total events failed after retries"),
		DispatcherDropped:   b.counter("dispatcher_dropped_total", "Total events dropped (buffer full or max requeues)"),
		DispatcherRequeued:  b.counter("dispatcher_requeued_total", "Total events requeued due to open circuit"),
		DispatcherQueueSize: b.gauge("dispatcher_queue_size", "Current number of events in dispatcher queue (saturation)"),
	}
	if b.err != nil {
		return nil, nil, b.err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := httpAttrs(method, path, statusCode)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordWorkflowStarted records a workflow being accepted.
func (m *Metrics) RecordWorkflowStarted(ctx context.Context, workflow string) {
	attrs := metric.WithAttributes(workflowAttr(workflow))
	m.WorkflowsTotal.Add(ctx, 1, attrs)
	m.WorkflowsActive.Add(ctx, 1, attrs)
}

// RecordWorkflowFinished records a workflow reaching a terminal state.
func (m *Metrics) RecordWorkflowFinished(ctx context.Context, workflow string, completed bool, durationSeconds float64) {
	attrs := metric.WithAttributes(workflowAttr(workflow), successAttr(completed))
	m.WorkflowDuration.Record(ctx, durationSeconds, attrs)
	m.WorkflowsActive.Add(ctx, -1, metric.WithAttributes(workflowAttr(workflow)))

	if !completed {
		m.WorkflowErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordStepStarted records a step being submitted.
func (m *Metrics) RecordStepStarted(ctx context.Context, step string) {
	m.StepsTotal.Add(ctx, 1, metric.WithAttributes(stepAttr(step)))
}

// RecordStepFinished records a step reaching a terminal state.
func (m *Metrics) RecordStepFinished(ctx context.Context, step string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(stepAttr(step), successAttr(success))
	m.StepDuration.Record(ctx, durationSeconds, attrs)

	if !success {
		m.StepErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordPlatformRequest records a run platform API round trip.
func (m *Metrics) RecordPlatformRequest(ctx context.Context, op string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(opAttr(op), successAttr(success))
	m.PlatformDuration.Record(ctx, durationSeconds, attrs)

	if !success {
		m.PlatformErrorsTotal.Add(ctx, 1, metric.WithAttributes(opAttr(op)))
	}
}

// RecordDispatcherDelivered records a delivered event and its latency.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records an event that exhausted its retries.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.DispatcherDropped.Add(ctx, 1)
}

// RecordDispatcherRequeued records an event parked behind an open breaker.
func (m *Metrics) RecordDispatcherRequeued(ctx context.Context) {
	m.DispatcherRequeued.Add(ctx, 1)
}

// RecordDispatcherQueueSize records the current queue depth.
func (m *Metrics) RecordDispatcherQueueSize(ctx context.Context, size int64) {
	m.DispatcherQueueSize.Record(ctx, size)
}
