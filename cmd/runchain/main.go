// runchain runs a single workflow chain from a YAML definition and waits
// for it to finish. Intended for local use and CI pipelines; the service
// API is the long-running counterpart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"runflow/internal/platform"
	"runflow/internal/run"
	"runflow/internal/workflow"

	"github.com/google/uuid"
)

func main() {
	var (
		chainPath   = flag.String("chain", "", "path to the chain definition YAML (required)")
		platformURL = flag.String("platform", "", "run platform base URL (overrides PLATFORM_URL)")
		stepTimeout = flag.Duration("step-timeout", 0, "per-step await bound, 0 = unbounded")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *chainPath == "" {
		fmt.Fprintln(os.Stderr, "usage: runchain -chain <file.yaml> [-platform <url>] [-step-timeout <duration>]")
		os.Exit(2)
	}

	if err := runChain(*chainPath, *platformURL, *stepTimeout); err != nil {
		var stepErr *workflow.StepError
		if errors.As(err, &stepErr) {
			slog.Error("Workflow aborted", "step", stepErr.Name, "state", stepErr.State)
		} else {
			slog.Error("Workflow failed", "error", err)
		}
		os.Exit(1)
	}
}

func runChain(chainPath, platformURL string, stepTimeout time.Duration) error {
	chain, err := workflow.LoadChain(chainPath)
	if err != nil {
		return err
	}

	cfg := platform.LoadConfigFromEnv()
	if platformURL != "" {
		cfg.BaseURL = platformURL
	}
	client := platform.NewClient(cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator := workflow.NewOrchestrator(client, nil, nil)
	workflowID := uuid.NewString()
	slog.Info("Running workflow", "workflow", chain.Name, "workflowId", workflowID, "steps", len(chain.Steps))

	start := time.Now()
	result, err := orchestrator.Run(ctx, chain, workflow.RunOptions{
		WorkflowID: workflowID,
		Await:      run.AwaitOptions{Timeout: stepTimeout},
		Observer: func(u workflow.StepUpdate) {
			if u.Handle != nil {
				slog.Debug("Step progress", "step", u.Name, "runId", u.Handle.ID, "state", u.Handle.State)
			}
		},
	})
	if err != nil {
		return err
	}

	slog.Info("Workflow complete", "duration", time.Since(start))
	for i, h := range result.Handles {
		fmt.Printf("%d\t%s\t%s\t%s\n", i, chain.Steps[i].Name, h.ID, h.State)
	}
	return nil
}
