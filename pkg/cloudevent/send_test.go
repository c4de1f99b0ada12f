package cloudevent

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSend_HeadersAndBody(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := New("runflow.workflow.complete", "runflow/service", "wf-1", "wf-1-123", map[string]any{
		"workflowId": "wf-1",
	})

	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := gotHeaders.Get("Ce-Type"); got != "runflow.workflow.complete" {
		t.Errorf("Ce-Type = %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/cloudevents+json" {
		t.Errorf("Content-Type = %q", got)
	}

	var decoded CloudEvent
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not a CloudEvent: %v", err)
	}
	if decoded.SpecVersion != "1.0" || decoded.Subject != "wf-1" {
		t.Errorf("unexpected event: %+v", decoded)
	}
}

func TestSend_Signature(t *testing.T) {
	t.Parallel()

	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := New("runflow.workflow.step.exit", "runflow/service", "wf-2", "wf-2-456", nil)
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{SigningKey: "secret"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestSend_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), srv.URL, New("t", "s", "sub", "id", nil), SendOptions{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected HTTPError 502, got %v", err)
	}
	if IsClientError(err) {
		t.Error("502 should not be a client error")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	if !IsClientError(&HTTPError{StatusCode: 404}) {
		t.Error("404 should be a client error")
	}
	if IsClientError(&HTTPError{StatusCode: 500}) {
		t.Error("500 should not be a client error")
	}
	if IsClientError(errors.New("boom")) {
		t.Error("non-HTTP errors are not client errors")
	}
}
