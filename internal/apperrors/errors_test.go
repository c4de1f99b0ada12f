package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func asAppError(t *testing.T, err error) *Error {
	t.Helper()
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	return appErr
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	t.Run("validation carries the field", func(t *testing.T) {
		t.Parallel()
		err := Validation("name", "workflow name is required")
		if !errors.Is(err, ErrValidation) {
			t.Error("expected ErrValidation classification")
		}
		if err.Error() != "workflow name is required" {
			t.Errorf("unexpected message: %q", err.Error())
		}
		if got := asAppError(t, err).Field; got != "name" {
			t.Errorf("expected field 'name', got %q", got)
		}
	})

	t.Run("not found names the resource", func(t *testing.T) {
		t.Parallel()
		err := NotFound("workflow", "abc123")
		if !errors.Is(err, ErrNotFound) {
			t.Error("expected ErrNotFound classification")
		}
		if err.Error() != "workflow abc123 not found" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	})

	t.Run("conflict names resource and id", func(t *testing.T) {
		t.Parallel()
		err := Conflict("workflow", "abc123", "already exists")
		if !errors.Is(err, ErrConflict) {
			t.Error("expected ErrConflict classification")
		}
		if err.Error() != "workflow abc123 already exists" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	})

	t.Run("submission keeps op and cause", func(t *testing.T) {
		t.Parallel()
		cause := fmt.Errorf("quota exceeded")
		err := Submission("platform.submit", cause)
		if !errors.Is(err, ErrSubmission) {
			t.Error("expected ErrSubmission classification")
		}
		if err.Error() != "platform.submit: quota exceeded" {
			t.Errorf("unexpected message: %q", err.Error())
		}
		appErr := asAppError(t, err)
		if appErr.Op != "platform.submit" {
			t.Errorf("expected op 'platform.submit', got %q", appErr.Op)
		}
		if appErr.Cause != cause {
			t.Error("expected cause to be preserved")
		}
	})

	t.Run("timeout classifies", func(t *testing.T) {
		t.Parallel()
		if err := Timeout("platform.awaitTerminal", fmt.Errorf("deadline exceeded")); !errors.Is(err, ErrTimeout) {
			t.Error("expected ErrTimeout classification")
		}
	})

	t.Run("internal keeps the cause in the message", func(t *testing.T) {
		t.Parallel()
		err := Internal("platform.refresh", fmt.Errorf("connection refused"))
		if !errors.Is(err, ErrInternal) {
			t.Error("expected ErrInternal classification")
		}
		if err.Error() != "platform.refresh: connection refused" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	})
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("name", "required"), http.StatusBadRequest},
		{"not found", NotFound("workflow", "123"), http.StatusNotFound},
		{"conflict", Conflict("workflow", "123", "exists"), http.StatusConflict},
		{"submission", Submission("op", fmt.Errorf("rejected")), http.StatusBadGateway},
		{"timeout", Timeout("op", fmt.Errorf("deadline")), http.StatusGatewayTimeout},
		{"unavailable", Unavailable("dispatcher", "queue full"), http.StatusServiceUnavailable},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"sentinel submission", ErrSubmission, http.StatusBadGateway},
		{"sentinel timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	t.Parallel()
	err := Submission("platform.submit", fmt.Errorf("bad locator"))
	err = fmt.Errorf("service error: %w", err)
	err = fmt.Errorf("handler error: %w", err)

	if !errors.Is(err, ErrSubmission) {
		t.Error("expected errors.Is to find ErrSubmission through multiple wraps")
	}
}
