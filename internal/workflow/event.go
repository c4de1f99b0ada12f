package workflow

import (
	"fmt"
	"slices"
	"time"

	"runflow/internal/run"
	"runflow/pkg/cloudevent"
)

// Event types for workflow lifecycle callbacks
const (
	EventTypeStepStart = "runflow.workflow.step.start"
	EventTypeStepExit  = "runflow.workflow.step.exit"
	EventTypeComplete  = "runflow.workflow.complete"
	EventTypeAborted   = "runflow.workflow.aborted"
)

// Callback configures lifecycle event delivery for one workflow.
type Callback struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Key    string   `json:"key,omitempty"` // HMAC signing key
}

// eventAllowed reports whether the event type passes the callback's
// filter. An empty filter allows all events.
func eventAllowed(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// EventBuilder builds CloudEvents for workflow lifecycle events.
type EventBuilder struct {
	source  string
	subject string
}

// NewEventBuilder creates a new EventBuilder for one workflow.
func NewEventBuilder(workflowID, source string) *EventBuilder {
	return &EventBuilder{
		source:  source,
		subject: workflowID,
	}
}

// Build creates a new CloudEvent with the given type and data.
func (b *EventBuilder) Build(eventType string, data map[string]any) *cloudevent.CloudEvent {
	eventID := fmt.Sprintf("%s-%d", b.subject, time.Now().UnixNano())
	return cloudevent.New(eventType, b.source, b.subject, eventID, data)
}

// BuildStepStartEvent creates a step start event.
func (b *EventBuilder) BuildStepStartEvent(index int, name, runID string) *cloudevent.CloudEvent {
	return b.Build(EventTypeStepStart, map[string]any{
		"workflowId": b.subject,
		"stepIndex":  index,
		"stepName":   name,
		"runId":      runID,
	})
}

// BuildStepExitEvent creates a step exit event.
func (b *EventBuilder) BuildStepExitEvent(index int, name, runID string, state run.State) *cloudevent.CloudEvent {
	return b.Build(EventTypeStepExit, map[string]any{
		"workflowId": b.subject,
		"stepIndex":  index,
		"stepName":   name,
		"runId":      runID,
		"state":      string(state),
	})
}

// BuildCompleteEvent creates a workflow completion event.
func (b *EventBuilder) BuildCompleteEvent(steps int) *cloudevent.CloudEvent {
	return b.Build(EventTypeComplete, map[string]any{
		"workflowId": b.subject,
		"steps":      steps,
	})
}

// BuildAbortedEvent creates a workflow aborted event.
func (b *EventBuilder) BuildAbortedEvent(index int, name string, state run.State) *cloudevent.CloudEvent {
	return b.Build(EventTypeAborted, map[string]any{
		"workflowId": b.subject,
		"stepIndex":  index,
		"stepName":   name,
		"state":      string(state),
	})
}
