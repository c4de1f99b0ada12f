package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"runflow/internal/apperrors"
	"runflow/internal/observability"
)

// Validation limits
const (
	maxCallbackEvents = 16
	maxRunning        = 256
)

// ServiceConfig tunes workflow bookkeeping.
type ServiceConfig struct {
	// Retention is how long terminal workflow records stay queryable.
	Retention time.Duration
	// SweepInterval is how often expired records are removed.
	SweepInterval time.Duration
}

// DefaultServiceConfig returns the default bookkeeping configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Retention:     time.Hour,
		SweepInterval: time.Minute,
	}
}

// Service manages workflow lifecycle on top of the chain orchestrator.
//
// Unlike run state, which the platform owns, chain progress exists only
// here: each accepted workflow runs on its own goroutine and records
// progress in an in-memory repository. A service restart therefore loses
// chain positions, while the underlying runs keep executing remotely.
type Service struct {
	orchestrator *Orchestrator
	metrics      *observability.Metrics
	cfg          ServiceConfig

	repo *stateRepo

	baseCtx   context.Context
	baseStop  context.CancelFunc
	done      chan struct{}
	sweepDone chan struct{}
}

// NewService creates a workflow service and starts its retention sweeper.
func NewService(orchestrator *Orchestrator, metrics *observability.Metrics, cfg ServiceConfig) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	baseCtx, baseStop := context.WithCancel(context.Background())
	s := &Service{
		orchestrator: orchestrator,
		metrics:      metrics,
		cfg:          cfg,
		repo:         newStateRepo(),
		baseCtx:      baseCtx,
		baseStop:     baseStop,
		done:         make(chan struct{}),
		sweepDone:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Submit validates and starts a new workflow. The chain executes
// asynchronously; the response only acknowledges acceptance.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	chain := req.Chain()
	chain.ApplyDefaults()
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	if err := validateCallback(req.Callback); err != nil {
		return nil, err
	}
	if s.repo.running() >= maxRunning {
		return nil, apperrors.Unavailable("workflow", "too many running workflows")
	}

	id := uuid.NewString()
	if err := s.repo.reserve(id); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	exec := newExecution(id, chain, cancel)
	s.repo.commit(id, exec)

	logger := slog.With("workflowId", id, "workflow", chain.Name)
	logger.Info("Workflow accepted", "steps", len(chain.Steps))
	if s.metrics != nil {
		s.metrics.RecordWorkflowStarted(ctx, chain.Name)
	}

	go s.execute(runCtx, exec, chain, req)

	return &SubmitResponse{ID: id, Status: StatusAccepted}, nil
}

// execute drives one chain to its terminal state.
func (s *Service) execute(ctx context.Context, exec *execution, chain *Chain, req *SubmitRequest) {
	defer exec.stop()

	result, err := s.orchestrator.Run(ctx, chain, RunOptions{
		WorkflowID: exec.id,
		Callback:   req.Callback,
		Await:      req.AwaitOptions(),
		Observer:   exec.observe,
	})
	exec.finish(result, err)

	if s.metrics != nil {
		completed := result != nil && result.State == ChainCompleted
		s.metrics.RecordWorkflowFinished(context.Background(), chain.Name, completed, time.Since(exec.startedAt).Seconds())
	}
}

// Get returns the status of a workflow.
func (s *Service) Get(ctx context.Context, id string) (*StatusResponse, error) {
	exec, exists := s.repo.get(id)
	if !exists || exec == nil {
		return nil, apperrors.NotFound("workflow", id)
	}
	status := exec.status()
	return &status, nil
}

// List returns all known workflows, including retained terminal ones.
func (s *Service) List(ctx context.Context) (*ListResponse, error) {
	execs := s.repo.list()
	statuses := make([]StatusResponse, 0, len(execs))
	for _, e := range execs {
		statuses = append(statuses, e.status())
	}
	return &ListResponse{Workflows: statuses}, nil
}

// Cancel stops a running workflow's chain locally. The step currently
// executing on the platform is not stopped; only no further steps are
// submitted.
func (s *Service) Cancel(ctx context.Context, id string) error {
	exec, exists := s.repo.get(id)
	if !exists || exec == nil {
		return apperrors.NotFound("workflow", id)
	}
	if !exec.stop() {
		return apperrors.Conflict("workflow", id, "already finished")
	}
	slog.Info("Workflow cancelled", "workflowId", id)
	return nil
}

// Close stops accepting progress and cancels all running chains.
// It waits up to the given grace period for chains to observe cancellation.
func (s *Service) Close(grace time.Duration) {
	s.baseStop()

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if s.repo.running() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	close(s.done)
	<-s.sweepDone
}

// sweepLoop removes terminal workflow records past their retention window.
func (s *Service) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-s.cfg.Retention))
		}
	}
}

func (s *Service) sweep(cutoff time.Time) {
	for _, e := range s.repo.list() {
		if e.terminal() && e.finishedBefore(cutoff) {
			if _, ok := s.repo.release(e.id); ok {
				slog.Debug("Expired workflow record removed", "workflowId", e.id)
			}
		}
	}
}

func validateCallback(cb *Callback) error {
	if cb == nil {
		return nil
	}
	if cb.URL != "" {
		if err := validateURL(cb.URL); err != nil {
			return apperrors.Validation("callback.url", "invalid callback URL: "+err.Error())
		}
	}
	if len(cb.Events) > maxCallbackEvents {
		return apperrors.Validation("callback.events", "callback events exceed maximum")
	}
	return nil
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
