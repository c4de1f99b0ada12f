// Package run defines the run domain types and the client contract to the
// external run-orchestration platform.
package run

import (
	"context"
	"time"
)

// Request describes a run to submit to the platform.
// Immutable after submission; only the run's state changes afterwards.
type Request struct {
	Command        string            `json:"command" yaml:"command"`
	MachineType    string            `json:"machineType" yaml:"machine_type"`
	Environment    map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Mounts         []Mount           `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	Output         string            `json:"output,omitempty" yaml:"output,omitempty"`
	SourceLabel    string            `json:"sourceLabel,omitempty" yaml:"source_label,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Mount declares a remote artifact mounted into the run's workspace.
type Mount struct {
	Locator string `json:"locator" yaml:"locator"` // remote artifact locator (e.g. runs/<id>/artifacts/<name>)
	Path    string `json:"path" yaml:"path"`       // relative mount path inside the workspace
}

// Handle is a lightweight reference to a submitted run. It reflects the
// platform's job registry and carries no logic of its own.
type Handle struct {
	ID            string `json:"id"`
	State         State  `json:"state"`
	ExitCode      *int   `json:"exitCode,omitempty"`
	Error         string `json:"error,omitempty"`
	OutputLocator string `json:"outputLocator,omitempty"` // set once the platform persists the declared output
}

// Client is the sole boundary to the external platform.
//
// Submit and Refresh are single round trips. AwaitTerminal is the one
// suspension point: it blocks until the run reaches a terminal state, always
// re-fetching the freshest status before returning.
type Client interface {
	// Submit requests creation of a remote run. Fails with a submission
	// error if the platform rejects the request; no local state is changed
	// beyond the returned handle.
	Submit(ctx context.Context, req *Request) (*Handle, error)

	// Refresh performs one round trip for the latest known status.
	// It does not block waiting for a terminal state. A handle that has
	// already reached a terminal state is never reported backward.
	Refresh(ctx context.Context, h *Handle) (*Handle, error)

	// AwaitTerminal blocks until the run reaches a terminal state or the
	// configured timeout elapses (timeout error). With a zero timeout it
	// blocks until ctx is cancelled. The returned state is always terminal.
	AwaitTerminal(ctx context.Context, h *Handle, opts AwaitOptions) (State, error)

	// Ready checks whether the platform is reachable.
	Ready(ctx context.Context) error
}

// AwaitOptions bounds an AwaitTerminal call. Zero values use the client's
// configured defaults.
type AwaitOptions struct {
	Timeout      time.Duration // 0 = no bound
	PollInterval time.Duration // initial status poll interval
}
