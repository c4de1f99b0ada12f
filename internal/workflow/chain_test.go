package workflow

import (
	"errors"
	"strings"
	"testing"

	"runflow/internal/apperrors"
	"runflow/internal/run"
)

func validChain() *Chain {
	c := &Chain{
		Name: "pipeline",
		Steps: []Step{
			{Name: "prepare", Run: run.Request{Command: "python prepare.py", Output: "prepared"}},
			{
				Name:   "train",
				Run:    run.Request{Command: "python train.py"},
				Inputs: []Input{{FromStep: "prepare", Path: "data"}},
			},
		},
	}
	c.ApplyDefaults()
	return c
}

func TestChainValidate_Valid(t *testing.T) {
	t.Parallel()
	if err := validChain().Validate(); err != nil {
		t.Errorf("valid chain rejected: %v", err)
	}
}

func TestChainValidate_EmptyChainIsValid(t *testing.T) {
	t.Parallel()
	c := &Chain{Name: "empty"}
	if err := c.Validate(); err != nil {
		t.Errorf("empty chain rejected: %v", err)
	}
}

func TestChainValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Chain)
	}{
		{"missing name", func(c *Chain) { c.Name = "" }},
		{"bad name", func(c *Chain) { c.Name = "-leading-dash" }},
		{"missing step name", func(c *Chain) { c.Steps[0].Name = "" }},
		{"duplicate step name", func(c *Chain) { c.Steps[1].Name = "prepare" }},
		{"missing command", func(c *Chain) { c.Steps[0].Run.Command = "" }},
		{"forward reference", func(c *Chain) {
			c.Steps[0].Inputs = []Input{{FromStep: "train", Path: "x"}}
		}},
		{"self reference", func(c *Chain) {
			c.Steps[0].Inputs = []Input{{FromStep: "prepare", Path: "x"}}
		}},
		{"unknown producer", func(c *Chain) {
			c.Steps[1].Inputs[0].FromStep = "nonexistent"
		}},
		{"producer without output", func(c *Chain) {
			c.Steps[0].Run.Output = ""
		}},
		{"empty input path", func(c *Chain) {
			c.Steps[1].Inputs[0].Path = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validChain()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestChainValidate_TooManySteps(t *testing.T) {
	t.Parallel()
	c := &Chain{Name: "big"}
	for i := 0; i <= maxSteps; i++ {
		c.Steps = append(c.Steps, Step{
			Name: "step" + strings.Repeat("x", i%8),
			Run:  run.Request{Command: "true"},
		})
	}
	if err := c.Validate(); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	c := &Chain{
		Name: "pipeline",
		Steps: []Step{
			{Name: "a", Run: run.Request{Command: "true"}},
			{Name: "b", Run: run.Request{Command: "true", MachineType: "gpu-a100", TimeoutSeconds: 60}},
		},
	}
	c.ApplyDefaults()

	if c.Steps[0].Run.MachineType != "cpu-small" {
		t.Errorf("default machine type not applied: %q", c.Steps[0].Run.MachineType)
	}
	if c.Steps[0].Run.TimeoutSeconds != 3600 {
		t.Errorf("default timeout not applied: %d", c.Steps[0].Run.TimeoutSeconds)
	}
	if c.Steps[1].Run.MachineType != "gpu-a100" || c.Steps[1].Run.TimeoutSeconds != 60 {
		t.Error("explicit values overwritten by defaults")
	}
}

func TestResolveRequest_NoInputs(t *testing.T) {
	t.Parallel()
	step := &Step{Name: "a", Run: run.Request{Command: "true", Mounts: []run.Mount{{Locator: "s3://base", Path: "base"}}}}
	req := resolveRequest(step, nil)

	if len(req.Mounts) != 1 {
		t.Errorf("mounts changed without inputs: %+v", req.Mounts)
	}
}

func TestResolveRequest_AppendsInputMounts(t *testing.T) {
	t.Parallel()
	step := &Step{
		Name:   "train",
		Run:    run.Request{Command: "true", Mounts: []run.Mount{{Locator: "s3://base", Path: "base"}}},
		Inputs: []Input{{FromStep: "prepare", Path: "data"}},
	}
	handles := map[string]*run.Handle{
		"prepare": {ID: "r-1", State: run.StateComplete, OutputLocator: "s3://artifacts/r-1"},
	}

	req := resolveRequest(step, handles)
	if len(req.Mounts) != 2 {
		t.Fatalf("expected 2 mounts, got %d", len(req.Mounts))
	}
	if req.Mounts[1].Locator != "s3://artifacts/r-1" || req.Mounts[1].Path != "data" {
		t.Errorf("unexpected input mount: %+v", req.Mounts[1])
	}

	// Original step request must stay untouched.
	if len(step.Run.Mounts) != 1 {
		t.Error("resolveRequest mutated the step definition")
	}
}

func TestOutputLocator_Fallback(t *testing.T) {
	t.Parallel()
	h := &run.Handle{ID: "r-9", State: run.StateComplete}
	if got := outputLocator(h); got != "runs/r-9/output" {
		t.Errorf("fallback locator = %q", got)
	}

	h.OutputLocator = "s3://artifacts/r-9"
	if got := outputLocator(h); got != "s3://artifacts/r-9" {
		t.Errorf("declared locator ignored: %q", got)
	}
}
