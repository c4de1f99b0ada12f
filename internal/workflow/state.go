package workflow

import (
	"context"
	"sync"
	"time"

	"runflow/internal/apperrors"
)

// execution holds the runtime state for a single workflow.
type execution struct {
	mu sync.RWMutex

	id          string
	name        string
	state       ChainState
	currentStep int
	failedStep  int
	steps       []StepStatus
	err         string
	startedAt   time.Time
	finishedAt  *time.Time

	cancel context.CancelFunc
}

func newExecution(id string, chain *Chain, cancel context.CancelFunc) *execution {
	steps := make([]StepStatus, len(chain.Steps))
	for i, step := range chain.Steps {
		steps[i] = StepStatus{Name: step.Name}
	}
	return &execution{
		id:          id,
		name:        chain.Name,
		state:       ChainRunning,
		currentStep: 0,
		failedStep:  -1,
		steps:       steps,
		startedAt:   time.Now().UTC(),
		cancel:      cancel,
	}
}

// observe records a step progress update from the orchestrator.
func (e *execution) observe(update StepUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentStep = update.Index
	if update.Index < 0 || update.Index >= len(e.steps) {
		return
	}
	st := &e.steps[update.Index]
	if update.Handle != nil {
		st.RunID = update.Handle.ID
		st.State = string(update.Handle.State)
		st.ExitCode = update.Handle.ExitCode
		st.Error = update.Handle.Error
	}
}

// finish records the terminal outcome of the workflow.
func (e *execution) finish(result *Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.finishedAt = &now
	if result != nil {
		e.state = result.State
		e.failedStep = result.FailedStep
	} else {
		e.state = ChainAborted
	}
	if err != nil {
		e.err = err.Error()
	}
	// Release the per-workflow context; leaving it uncancelled would keep
	// it parented to the service context for the life of the process.
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// status returns a point-in-time snapshot for API responses.
func (e *execution) status() StatusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()

	steps := make([]StepStatus, len(e.steps))
	copy(steps, e.steps)

	resp := StatusResponse{
		ID:          e.id,
		Name:        e.name,
		State:       string(e.state),
		CurrentStep: e.currentStep,
		FailedStep:  e.failedStep,
		Steps:       steps,
		Error:       e.err,
		StartedAt:   e.startedAt,
	}
	if e.finishedAt != nil {
		t := *e.finishedAt
		resp.FinishedAt = &t
	}
	return resp
}

func (e *execution) terminal() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Terminal()
}

func (e *execution) finishedBefore(cutoff time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finishedAt != nil && e.finishedAt.Before(cutoff)
}

// stop cancels the local chain loop. The in-flight remote run keeps running;
// the platform owns its lifecycle.
func (e *execution) stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return false
	}
	e.cancel()
	e.cancel = nil
	return true
}

// stateRepo manages workflow executions with thread-safe access.
type stateRepo struct {
	mu        sync.RWMutex
	workflows map[string]*execution
}

func newStateRepo() *stateRepo {
	return &stateRepo{
		workflows: make(map[string]*execution),
	}
}

// reserve attempts to reserve a workflow ID slot. Returns error if already exists.
// The slot is reserved with nil until commit is called.
func (r *stateRepo) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[id]; exists {
		return apperrors.Conflict("workflow", id, "already exists")
	}
	r.workflows[id] = nil
	return nil
}

// commit fills in a reserved slot with the actual execution.
func (r *stateRepo) commit(id string, e *execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[id] = e
}

// release removes a workflow from the repository. Returns the execution if it existed.
func (r *stateRepo) release(id string) (*execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.workflows[id]
	if exists {
		delete(r.workflows, id)
	}
	return e, exists
}

// get retrieves a workflow's execution. Returns (nil, true) if reserved but not
// yet committed.
func (r *stateRepo) get(id string) (*execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.workflows[id]
	return e, exists
}

// list returns all committed executions.
func (r *stateRepo) list() []*execution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*execution, 0, len(r.workflows))
	for _, e := range r.workflows {
		if e != nil {
			result = append(result, e)
		}
	}
	return result
}

// count returns the number of running (non-terminal) executions.
func (r *stateRepo) running() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.workflows {
		if e != nil && !e.terminal() {
			n++
		}
	}
	return n
}
