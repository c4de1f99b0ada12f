// Package api exposes the workflows service over HTTP: workflow CRUD
// under /v1, probes, and internal introspection endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"runflow/internal/apperrors"
	"runflow/internal/dispatcher"
	"runflow/internal/health"
	"runflow/internal/observability"
	"runflow/internal/workflow"
)

// maxBodyBytes caps request bodies at 1 MB.
const maxBodyBytes = 1 << 20

// Handler holds the dependencies the endpoints need.
type Handler struct {
	svc        *workflow.Service
	metrics    *observability.Metrics
	health     *health.Checker
	dispatcher dispatcher.Dispatcher
}

// NewHandler wires a handler over the service layer.
func NewHandler(svc *workflow.Service, metrics *observability.Metrics, healthChecker *health.Checker, d dispatcher.Dispatcher) *Handler {
	return &Handler{
		svc:        svc,
		metrics:    metrics,
		health:     healthChecker,
		dispatcher: d,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// serviceError translates a service layer error into a response,
// logging server-side failures at error level.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, err.Error())
}

// pathWorkflowID pulls the {workflowId} segment, writing a 400 when it
// is missing.
func pathWorkflowID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("workflowId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow ID is required")
		return "", false
	}
	return id, true
}

// CreateWorkflow handles POST /v1/workflows. The workflow is accepted
// and runs asynchronously; poll GetWorkflow or register a callback to
// observe progress.
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req workflow.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.Submit(r.Context(), &req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// ListWorkflows handles GET /v1/workflows.
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.List(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetWorkflow handles GET /v1/workflows/{workflowId}.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathWorkflowID(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Get(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DeleteWorkflow handles DELETE /v1/workflows/{workflowId}. Cancelling
// stops the chain before the next step; a step already running on the
// platform is left to finish there.
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathWorkflowID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DispatcherStats handles GET /internal/dispatcher, exposing the
// callback delivery pipeline counters.
func (h *Handler) DispatcherStats(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeError(w, http.StatusNotFound, "dispatcher not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.dispatcher.Stats())
}

// Livez handles GET /livez. Process health only; no dependency checks.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz. Answers 503 while the run platform is
// unreachable or the service is draining.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}
