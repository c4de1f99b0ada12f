package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"runflow/internal/apperrors"
	"runflow/internal/run"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:         srv.URL,
		HTTPTimeout:     5 * time.Second,
		PollInterval:    time.Millisecond,
		PollMaxInterval: 5 * time.Millisecond,
	}, nil)
}

func writeRun(w http.ResponseWriter, status int, resp runResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	var gotReq run.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		writeRun(w, http.StatusCreated, runResponse{ID: "r-1", State: run.StateQueued})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	h, err := c.Submit(context.Background(), &run.Request{
		Command:     "python prepare.py",
		MachineType: "cpu-medium",
		Output:      "prepared",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if h.ID != "r-1" || h.State != run.StateQueued {
		t.Errorf("unexpected handle: %+v", h)
	}
	if gotReq.Command != "python prepare.py" {
		t.Errorf("command not forwarded: %q", gotReq.Command)
	}
}

func TestSubmit_RejectionIsSubmissionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Submit(context.Background(), &run.Request{Command: "true"})
	if !errors.Is(err, apperrors.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestSubmit_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeRun(w, http.StatusCreated, runResponse{ID: "r-2", State: run.StateQueued})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	h, err := c.Submit(context.Background(), &run.Request{Command: "true"})
	if err != nil {
		t.Fatalf("Submit failed after retries: %v", err)
	}
	if h.ID != "r-2" {
		t.Errorf("unexpected handle: %+v", h)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestSubmit_DoesNotRetryRejections(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Submit(context.Background(), &run.Request{Command: "true"})
	if !errors.Is(err, apperrors.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("rejection should not be retried, got %d attempts", got)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/runs/r-3" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		writeRun(w, http.StatusOK, runResponse{ID: "r-3", State: run.StateRunning})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	h, err := c.Refresh(context.Background(), &run.Handle{ID: "r-3", State: run.StateQueued})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if h.State != run.StateRunning {
		t.Errorf("state = %s, want running", h.State)
	}
}

func TestRefresh_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Refresh(context.Background(), &run.Handle{ID: "gone", State: run.StateQueued})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefresh_TerminalStateIsSticky(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRun(w, http.StatusOK, runResponse{ID: "r-4", State: run.StateRunning})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	h, err := c.Refresh(context.Background(), &run.Handle{ID: "r-4", State: run.StateComplete})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if h.State != run.StateComplete {
		t.Errorf("terminal state rewound to %s", h.State)
	}
}

func TestRefresh_BackwardStateIgnored(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRun(w, http.StatusOK, runResponse{ID: "r-5", State: run.StateQueued})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	h, err := c.Refresh(context.Background(), &run.Handle{ID: "r-5", State: run.StateSaving})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if h.State != run.StateSaving {
		t.Errorf("state moved backward to %s", h.State)
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/ping" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.Ready(context.Background()); err != nil {
		t.Errorf("Ready failed: %v", err)
	}

	srv.Close()
	if err := c.Ready(context.Background()); err == nil {
		t.Error("expected error against closed server")
	}
}

func TestSubmit_SendsAuthorization(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeRun(w, http.StatusCreated, runResponse{ID: "r-6", State: run.StateQueued})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "token123"}, nil)
	if _, err := c.Submit(context.Background(), &run.Request{Command: "true"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
