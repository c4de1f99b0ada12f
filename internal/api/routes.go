package api

import (
	"net/http"

	"runflow/internal/dispatcher"
	"runflow/internal/health"
	"runflow/internal/observability"
	"runflow/internal/workflow"
)

// RouterConfig carries the router's dependencies. Metrics may be nil,
// in which case no request metrics are recorded.
type RouterConfig struct {
	WorkflowService *workflow.Service
	Metrics         *observability.Metrics
	HealthChecker   *health.Checker
	Dispatcher      dispatcher.Dispatcher
	APIKey          string
}

// NewRouter assembles the route table and middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.WorkflowService, cfg.Metrics, cfg.HealthChecker, cfg.Dispatcher)
	auth := AuthMiddleware(cfg.APIKey)
	protected := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux := http.NewServeMux()

	// Probes and internal endpoints skip auth; the latter are expected
	// to be network-isolated.
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	mux.HandleFunc("GET /internal/dispatcher", handler.DispatcherStats)

	mux.Handle("POST /v1/workflows", protected(handler.CreateWorkflow))
	mux.Handle("GET /v1/workflows", protected(handler.ListWorkflows))
	mux.Handle("GET /v1/workflows/{workflowId}", protected(handler.GetWorkflow))
	mux.Handle("DELETE /v1/workflows/{workflowId}", protected(handler.DeleteWorkflow))

	// Recovery wraps everything; logging sees every request including
	// ones the inner middleware rejects.
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
