package platform

import (
	"context"
	"errors"
	"time"

	"runflow/internal/apperrors"
	"runflow/internal/run"
	"runflow/pkg/backoff"
)

// AwaitTerminal blocks until the run behind h reaches a terminal state.
//
// This is the explicit synchronization point between the orchestrator and
// the platform: status is re-fetched on every iteration (never silently
// cached), the poll interval grows exponentially from opts.PollInterval to
// the configured cap with jitter, and the returned state is always terminal.
//
// With opts.Timeout > 0 the wait is bounded and exceeding it returns a
// timeout error; with a zero timeout the wait is bounded only by ctx.
func (c *Client) AwaitTerminal(ctx context.Context, h *run.Handle, opts run.AwaitOptions) (run.State, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = c.config.PollInterval
	}
	poll := &backoff.Config{
		Initial: interval,
		Max:     c.config.PollMaxInterval,
		Jitter:  0.2,
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	current := h
	failures := 0
	for attempt := 1; ; attempt++ {
		fresh, err := c.Refresh(waitCtx, current)
		switch {
		case err == nil:
			failures = 0
			current = fresh
			if current.State.Terminal() {
				*h = *current
				return current.State, nil
			}

		case errors.Is(err, apperrors.ErrNotFound):
			return "", err

		default:
			// Transient refresh failures are retried along with the poll;
			// a platform that stays unreachable is surfaced eventually.
			failures++
			c.logger.Warn("Status poll failed", "runId", h.ID, "failures", failures, "error", err)
			if failures >= maxConsecutivePollFailures {
				return "", err
			}
		}

		select {
		case <-waitCtx.Done():
			// A parent cancellation propagates as-is; only the bound we
			// added ourselves becomes a timeout error.
			if opts.Timeout > 0 && ctx.Err() == nil {
				return "", apperrors.Timeout("platform.awaitTerminal", waitCtx.Err())
			}
			return "", waitCtx.Err()
		case <-time.After(backoff.Exponential(attempt, poll)):
		}
	}
}
