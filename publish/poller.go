// Package publish implements the concurrent template publish workflow:
// fan-out submission of staged artifacts to the hub, sequential status
// polling per artifact, outcome aggregation under a global deadline, and
// unconditional cleanup of the staging area.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/stencil/types"
)

// DefaultPollInterval is the fixed delay before each status check.
// The delay is mandatory every iteration to avoid hammering the hub.
const DefaultPollInterval = 2 * time.Second

// StatusChecker performs a single remote status check.
type StatusChecker interface {
	Status(ctx context.Context, handle types.TrackingHandle) (types.TemplateStatus, error)
}

// Poller drives a submitted template to a terminal validation state.
// An explicit loop, not recursion: each iteration waits the fixed interval,
// issues one status check, and stops on a terminal state.
type Poller struct {
	// Checker performs the status requests.
	Checker StatusChecker
	// Interval is the fixed delay before each status check (default 2s).
	Interval time.Duration
	// MaxPolls bounds the number of status checks (0 = unbounded; the
	// batch deadline bounds total time either way).
	MaxPolls int
	// Timeout bounds one artifact's total polling time (0 = none).
	Timeout time.Duration
}

// Poll checks handle's status until it leaves the pending state.
// The fixed delay precedes every check, including the first. Returns the
// terminal status and the number of checks issued; the count is still
// meaningful on error for reporting.
func (p *Poller) Poll(ctx context.Context, handle types.TrackingHandle) (types.TemplateStatus, int, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			return types.TemplateStatus{}, polls - 1, fmt.Errorf("timed out waiting for validation: %w", ctx.Err())
		case <-time.After(interval):
		}

		status, err := p.Checker.Status(ctx, handle)
		if err != nil {
			return types.TemplateStatus{}, polls, err
		}
		if status.State.Terminal() {
			return status, polls, nil
		}
		if p.MaxPolls > 0 && polls >= p.MaxPolls {
			return status, polls, fmt.Errorf("still pending after %d status checks", polls)
		}
	}
}
