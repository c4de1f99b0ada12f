// Package observability wires OpenTelemetry metrics to a Prometheus
// scrape endpoint and defines the attribute conventions the service
// records against.
package observability

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attributes are kept low-cardinality: paths are normalized, status
// codes are grouped by class, and free-form IDs never become labels.

func workflowAttr(workflow string) attribute.KeyValue {
	return attribute.String("workflow", workflow)
}

func stepAttr(step string) attribute.KeyValue {
	return attribute.String("step", step)
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String("op", op)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool("success", success)
}

// httpAttrs is the shared attribute set for the HTTP instruments.
func httpAttrs(method, path string, code int) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", normalizePath(path)),
		attribute.String("status", statusClass(code)),
	)
}

// statusClass groups a status code into its class, e.g. 404 -> "4xx".
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// normalizePath collapses the workflow ID segment so each workflow does
// not create its own metric series.
func normalizePath(path string) string {
	const prefix = "/v1/workflows/"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return "/v1/workflows/{workflowId}"
	}
	return path
}
