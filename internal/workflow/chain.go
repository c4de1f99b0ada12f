// Package workflow implements the sequential job-chaining orchestrator:
// an ordered chain of remote runs where each step's declared output feeds
// downstream steps' inputs, gated on completion-status checks.
package workflow

import (
	"fmt"
	"regexp"

	"runflow/internal/apperrors"
	"runflow/internal/run"
)

// Validation limits
const (
	maxNameLength = 128
	maxSteps      = 64
	maxInputs     = 16
)

// namePattern allows alphanumeric, hyphens, and underscores
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Chain is an ordered sequence of steps with data-flow edges between them.
type Chain struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is one run in a chain, plus the inputs it consumes from earlier steps.
type Step struct {
	Name   string      `json:"name" yaml:"name"`
	Run    run.Request `json:"run" yaml:"run"`
	Inputs []Input     `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Input wires an earlier step's declared output into this step's workspace.
type Input struct {
	FromStep string `json:"fromStep" yaml:"from_step"`
	Path     string `json:"path" yaml:"path"`
}

// ApplyDefaults sets default values for unspecified step fields.
func (c *Chain) ApplyDefaults() {
	for i := range c.Steps {
		r := &c.Steps[i].Run
		if r.MachineType == "" {
			r.MachineType = "cpu-small"
		}
		if r.TimeoutSeconds <= 0 {
			r.TimeoutSeconds = 3600
		}
	}
}

// Validate checks chain structure. Inputs may only reference strictly
// earlier steps, and a referenced producer must declare an output;
// submission order alone then guarantees every input's producer has reached
// the complete state before its consumer is submitted.
func (c *Chain) Validate() error {
	if c.Name == "" {
		return apperrors.Validation("name", "workflow name is required")
	}
	if len(c.Name) > maxNameLength {
		return apperrors.Validation("name", fmt.Sprintf("workflow name exceeds maximum length of %d", maxNameLength))
	}
	if !namePattern.MatchString(c.Name) {
		return apperrors.Validation("name", "workflow name must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	if len(c.Steps) > maxSteps {
		return apperrors.Validation("steps", fmt.Sprintf("steps exceed maximum of %d", maxSteps))
	}

	seen := make(map[string]int, len(c.Steps))
	for i, step := range c.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.Name == "" {
			return apperrors.Validation(field+".name", fmt.Sprintf("%s: step name is required", field))
		}
		if !namePattern.MatchString(step.Name) {
			return apperrors.Validation(field+".name", fmt.Sprintf("%s: invalid step name %q", field, step.Name))
		}
		if _, dup := seen[step.Name]; dup {
			return apperrors.Validation(field+".name", fmt.Sprintf("%s: duplicate step name %q", field, step.Name))
		}

		if err := run.Validate(field+".run", &step.Run); err != nil {
			return err
		}

		if len(step.Inputs) > maxInputs {
			return apperrors.Validation(field+".inputs", fmt.Sprintf("%s: inputs exceed maximum of %d", field, maxInputs))
		}
		for j, in := range step.Inputs {
			inField := fmt.Sprintf("%s.inputs[%d]", field, j)
			if in.FromStep == "" {
				return apperrors.Validation(inField+".fromStep", fmt.Sprintf("%s: fromStep is required", inField))
			}
			if in.Path == "" {
				return apperrors.Validation(inField+".path", fmt.Sprintf("%s: path is required", inField))
			}
			producer, ok := seen[in.FromStep]
			if !ok {
				return apperrors.Validation(inField+".fromStep", fmt.Sprintf("%s: step %q must reference an earlier step, %q is not one", inField, step.Name, in.FromStep))
			}
			if c.Steps[producer].Run.Output == "" {
				return apperrors.Validation(inField+".fromStep", fmt.Sprintf("%s: step %q declares no output", inField, in.FromStep))
			}
		}

		seen[step.Name] = i
	}

	return nil
}

// resolveRequest builds the effective run request for a step, wiring each
// input to the producing run's output artifact locator.
func resolveRequest(step *Step, handles map[string]*run.Handle) *run.Request {
	req := step.Run
	if len(step.Inputs) == 0 {
		return &req
	}

	mounts := make([]run.Mount, 0, len(req.Mounts)+len(step.Inputs))
	mounts = append(mounts, req.Mounts...)
	for _, in := range step.Inputs {
		h := handles[in.FromStep]
		if h == nil {
			continue // validated earlier; producer always submitted first
		}
		mounts = append(mounts, run.Mount{
			Locator: outputLocator(h),
			Path:    in.Path,
		})
	}
	req.Mounts = mounts
	return &req
}

// outputLocator returns the locator of a run's persisted output. Whether the
// artifact actually exists is not checked here: a producer that reported
// complete without writing its output surfaces as a failure of the consumer,
// on the platform side.
func outputLocator(h *run.Handle) string {
	if h.OutputLocator != "" {
		return h.OutputLocator
	}
	return fmt.Sprintf("runs/%s/output", h.ID)
}
