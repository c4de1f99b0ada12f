package workflow

import (
	"time"

	"runflow/internal/run"
)

// SubmitRequest asks the service to start a new workflow execution.
type SubmitRequest struct {
	Name         string    `json:"name"`
	Steps        []Step    `json:"steps"`
	Callback     *Callback `json:"callback,omitempty"`
	StepTimeout  int       `json:"stepTimeoutSeconds,omitempty"` // per-step await bound, 0 = unbounded
	PollInterval int       `json:"pollIntervalSeconds,omitempty"`
}

// Chain builds the chain described by the request.
func (r *SubmitRequest) Chain() *Chain {
	return &Chain{Name: r.Name, Steps: r.Steps}
}

// AwaitOptions builds the per-step await options for the request.
func (r *SubmitRequest) AwaitOptions() run.AwaitOptions {
	return run.AwaitOptions{
		Timeout:      time.Duration(r.StepTimeout) * time.Second,
		PollInterval: time.Duration(r.PollInterval) * time.Second,
	}
}

// SubmitResponse acknowledges an accepted workflow.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "accepted"
}

// StepStatus is one step's observed progress within a workflow.
type StepStatus struct {
	Name     string `json:"name"`
	RunID    string `json:"runId,omitempty"`
	State    string `json:"state,omitempty"` // last run state reported by the platform
	ExitCode *int   `json:"exitCode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse is the externally visible status of one workflow.
type StatusResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	State       string       `json:"state"` // idle, running, completed, aborted
	CurrentStep int          `json:"currentStep"`
	FailedStep  int          `json:"failedStep"` // -1 unless aborted
	Steps       []StepStatus `json:"steps"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
}

// ListResponse lists all known workflows.
type ListResponse struct {
	Workflows []StatusResponse `json:"workflows"`
}

// StatusAccepted is the submit acknowledgement status.
const StatusAccepted = "accepted"
