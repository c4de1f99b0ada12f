package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"runflow/internal/apperrors"
	"runflow/internal/run"
)

// sequenceServer serves a scripted sequence of states, repeating the last.
func sequenceServer(t *testing.T, states ...run.State) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(states) {
			n = len(states) - 1
		}
		writeRun(w, http.StatusOK, runResponse{ID: "r-1", State: states[n]})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAwaitTerminal_PollsUntilComplete(t *testing.T) {
	t.Parallel()

	srv, calls := sequenceServer(t,
		run.StateQueued, run.StateProvisioning, run.StateRunning,
		run.StateSaving, run.StatePushing, run.StateComplete,
	)

	c := testClient(t, srv)
	h := &run.Handle{ID: "r-1", State: run.StateQueued}
	state, err := c.AwaitTerminal(context.Background(), h, run.AwaitOptions{})
	if err != nil {
		t.Fatalf("AwaitTerminal failed: %v", err)
	}
	if state != run.StateComplete {
		t.Errorf("state = %s, want complete", state)
	}
	if !state.Terminal() {
		t.Error("AwaitTerminal returned a non-terminal state")
	}
	if h.State != run.StateComplete {
		t.Errorf("handle not updated, state = %s", h.State)
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("expected 6 polls, got %d", got)
	}
}

func TestAwaitTerminal_ReturnsFailedState(t *testing.T) {
	t.Parallel()

	srv, _ := sequenceServer(t, run.StateRunning, run.StateFailed)

	c := testClient(t, srv)
	state, err := c.AwaitTerminal(context.Background(), &run.Handle{ID: "r-1", State: run.StateRunning}, run.AwaitOptions{})
	if err != nil {
		t.Fatalf("AwaitTerminal failed: %v", err)
	}
	if state != run.StateFailed {
		t.Errorf("state = %s, want failed", state)
	}
}

func TestAwaitTerminal_Timeout(t *testing.T) {
	t.Parallel()

	srv, _ := sequenceServer(t, run.StateRunning)

	c := testClient(t, srv)
	_, err := c.AwaitTerminal(context.Background(), &run.Handle{ID: "r-1", State: run.StateRunning}, run.AwaitOptions{
		Timeout: 30 * time.Millisecond,
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestAwaitTerminal_ParentCancellationIsNotATimeout(t *testing.T) {
	t.Parallel()

	srv, _ := sequenceServer(t, run.StateRunning)

	c := testClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.AwaitTerminal(ctx, &run.Handle{ID: "r-1", State: run.StateRunning}, run.AwaitOptions{
		Timeout: time.Minute,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, apperrors.ErrTimeout) {
		t.Error("parent cancellation should not surface as a timeout")
	}
}

func TestAwaitTerminal_NotFoundAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.AwaitTerminal(context.Background(), &run.Handle{ID: "gone", State: run.StateQueued}, run.AwaitOptions{})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAwaitTerminal_SurfacesPersistentFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.AwaitTerminal(context.Background(), &run.Handle{ID: "r-1", State: run.StateRunning}, run.AwaitOptions{})
	if err == nil {
		t.Fatal("expected error after persistent poll failures")
	}
	if got := calls.Load(); got < maxConsecutivePollFailures {
		t.Errorf("expected at least %d polls, got %d", maxConsecutivePollFailures, got)
	}
}

func TestAwaitTerminal_AlreadyTerminal(t *testing.T) {
	t.Parallel()

	// The platform still gets one freshness round trip, but a terminal
	// handle never rewinds.
	srv, calls := sequenceServer(t, run.StateRunning)

	c := testClient(t, srv)
	state, err := c.AwaitTerminal(context.Background(), &run.Handle{ID: "r-1", State: run.StateStopped}, run.AwaitOptions{})
	if err != nil {
		t.Fatalf("AwaitTerminal failed: %v", err)
	}
	if state != run.StateStopped {
		t.Errorf("state = %s, want stopped", state)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", got)
	}
}
