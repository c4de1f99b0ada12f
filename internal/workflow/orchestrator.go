package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"runflow/internal/dispatcher"
	"runflow/internal/observability"
	"runflow/internal/run"
	"runflow/pkg/cloudevent"
)

// ChainState is the orchestrator's state for one chain execution.
type ChainState string

const (
	ChainIdle      ChainState = "idle"
	ChainRunning   ChainState = "running"
	ChainCompleted ChainState = "completed"
	ChainAborted   ChainState = "aborted"
)

// Terminal reports whether no further steps will run.
func (s ChainState) Terminal() bool {
	return s == ChainCompleted || s == ChainAborted
}

// StepError reports a step that reached a non-complete terminal state.
// The remaining chain is aborted; completed steps are not rolled back since
// their remote side effects are already persisted by the platform.
type StepError struct {
	Index int
	Name  string
	State run.State
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) finished %s", e.Index, e.Name, e.State)
}

// Result describes a finished chain execution.
type Result struct {
	State       ChainState
	FailedStep  int // index of the failing step, -1 when completed
	FailedState run.State
	Handles     []*run.Handle // one per submitted step, in order
}

// StepUpdate notifies an observer of step progress.
type StepUpdate struct {
	Index  int
	Name   string
	Handle *run.Handle
}

// RunOptions configures one chain execution.
type RunOptions struct {
	WorkflowID string           // event subject; also used for logging
	Callback   *Callback        // optional lifecycle event destination
	Await      run.AwaitOptions // per-step await bound
	Observer   func(StepUpdate) // optional progress hook, called in order
}

// Orchestrator sequences chain executions against the platform.
//
// Steps run strictly sequentially on the caller's goroutine; the await on
// each step is the sole suspension point. The orchestrator never owns run
// state, it only reflects what the platform reports.
type Orchestrator struct {
	client     run.Client
	dispatcher dispatcher.Dispatcher
	metrics    *observability.Metrics
}

// NewOrchestrator creates a new chain orchestrator.
// The dispatcher and metrics are optional.
func NewOrchestrator(client run.Client, d dispatcher.Dispatcher, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		client:     client,
		dispatcher: d,
		metrics:    metrics,
	}
}

// Run executes a chain to completion or first failure.
//
// Each step is submitted only after every step producing its inputs reported
// complete; with strictly sequential execution that means after all prior
// steps completed. A step ending in any other terminal state aborts the
// remaining chain with a StepError. A zero-step chain completes immediately
// without submitting anything.
//
// Submission and await failures propagate to the caller; the partial Result
// retains handles for every step submitted so far. Cancelling ctx stops the
// chain locally but does not cancel the in-flight remote run.
func (o *Orchestrator) Run(ctx context.Context, chain *Chain, opts RunOptions) (*Result, error) {
	logger := slog.With("workflowId", opts.WorkflowID, "workflow", chain.Name)
	events := NewEventBuilder(opts.WorkflowID, "runflow/orchestrator")

	result := &Result{
		State:      ChainRunning,
		FailedStep: -1,
		Handles:    make([]*run.Handle, 0, len(chain.Steps)),
	}
	handles := make(map[string]*run.Handle, len(chain.Steps))

	for i := range chain.Steps {
		step := &chain.Steps[i]
		stepLogger := logger.With("step", step.Name, "stepIndex", i)

		req := resolveRequest(step, handles)
		start := time.Now()

		h, err := o.client.Submit(ctx, req)
		if err != nil {
			stepLogger.Error("Step submission failed", "error", err)
			result.State = ChainAborted
			result.FailedStep = i
			return result, err
		}
		handles[step.Name] = h
		result.Handles = append(result.Handles, h)
		stepLogger.Info("Step submitted", "runId", h.ID)

		o.notify(opts, StepUpdate{Index: i, Name: step.Name, Handle: h})
		o.emit(opts, events.BuildStepStartEvent(i, step.Name, h.ID))
		if o.metrics != nil {
			o.metrics.RecordStepStarted(ctx, step.Name)
		}

		state, err := o.client.AwaitTerminal(ctx, h, opts.Await)
		if err != nil {
			stepLogger.Error("Step await failed", "error", err)
			result.State = ChainAborted
			result.FailedStep = i
			o.notify(opts, StepUpdate{Index: i, Name: step.Name, Handle: h})
			return result, err
		}

		o.notify(opts, StepUpdate{Index: i, Name: step.Name, Handle: h})
		o.emit(opts, events.BuildStepExitEvent(i, step.Name, h.ID, state))
		if o.metrics != nil {
			o.metrics.RecordStepFinished(ctx, step.Name, state == run.StateComplete, time.Since(start).Seconds())
		}

		if state != run.StateComplete {
			stepLogger.Warn("Step did not complete, aborting chain", "state", state)
			result.State = ChainAborted
			result.FailedStep = i
			result.FailedState = state
			o.emit(opts, events.BuildAbortedEvent(i, step.Name, state))
			return result, &StepError{Index: i, Name: step.Name, State: state}
		}

		stepLogger.Info("Step complete", "runId", h.ID, "duration", time.Since(start))
	}

	result.State = ChainCompleted
	logger.Info("Workflow complete", "steps", len(chain.Steps))
	o.emit(opts, events.BuildCompleteEvent(len(chain.Steps)))
	return result, nil
}

func (o *Orchestrator) notify(opts RunOptions, update StepUpdate) {
	if opts.Observer != nil {
		opts.Observer(update)
	}
}

// emit dispatches a lifecycle event if a callback destination is configured.
// Dispatch errors are not fatal to the chain; the dispatcher logs drops.
func (o *Orchestrator) emit(opts RunOptions, event *cloudevent.CloudEvent) {
	if o.dispatcher == nil || opts.Callback == nil || opts.Callback.URL == "" {
		return
	}
	if !eventAllowed(event.Type, opts.Callback.Events) {
		return
	}
	if err := o.dispatcher.Dispatch(&dispatcher.Event{
		Payload:     event,
		Destination: opts.Callback.URL,
		SigningKey:  opts.Callback.Key,
	}); err != nil {
		slog.Warn("Failed to dispatch workflow event", "type", event.Type, "error", err)
	}
}
