package publish

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/stencil/log"
	"github.com/pithecene-io/stencil/types"
)

// ErrPublishFailed is the terminal batch failure signal. By the time it is
// returned, every per-artifact failure has already been logged, so callers
// surface it as a one-line build failure rather than an error trace.
var ErrPublishFailed = errors.New("template publish failed")

// cleanupTimeout bounds staging cleanup. Cleanup runs on its own context
// because the batch context may already be expired.
const cleanupTimeout = 5 * time.Minute

// Stager is the staging-store surface the pipeline needs.
type Stager interface {
	// Discard removes the staged objects for the given artifacts.
	Discard(ctx context.Context, artifacts []types.Artifact) error
}

// Pipeline runs a publish batch and always discards the staged objects
// afterwards, success or failure.
type Pipeline struct {
	Coordinator *Coordinator
	Store       Stager
	Log         *log.Logger
}

// Run publishes all artifacts, removes their staged objects regardless of
// outcome, and returns ErrPublishFailed (after cleanup) when any artifact
// failed. A cleanup failure is logged but does not change the batch result.
func (p *Pipeline) Run(ctx context.Context, batchID string, artifacts []types.Artifact) (report types.BatchReport, err error) {
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		if cleanupErr := p.Store.Discard(cleanupCtx, artifacts); cleanupErr != nil {
			p.Log.Warn("failed to discard staged templates", map[string]any{
				"error": cleanupErr.Error(),
			})
		}

		if err == nil && !report.OK {
			err = ErrPublishFailed
		}
	}()

	report = p.Coordinator.PublishAll(ctx, batchID, artifacts)
	return report, nil
}
