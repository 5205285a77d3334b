package publish

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/stencil/log"
	"github.com/pithecene-io/stencil/types"
)

// DefaultBatchTimeout bounds one entire publish batch.
const DefaultBatchTimeout = time.Hour

// Coordinator fans publishing out over all artifacts and reduces the
// outcomes to a single batch result. Artifacts are fully independent; the
// only ordering guarantee is within one artifact's own lifecycle.
type Coordinator struct {
	// Publisher handles one artifact end to end.
	Publisher *Publisher
	// Log receives one entry per outcome.
	Log *log.Logger
	// Parallel caps concurrent publishes (0 = all at once).
	Parallel int
	// Timeout bounds the whole batch (default 1h).
	Timeout time.Duration
	// Notify, if set, observes each outcome as it is collected. Called
	// from the single aggregation goroutine, never concurrently.
	Notify func(types.PublishOutcome)
}

// PublishAll publishes every artifact concurrently and reports exactly one
// outcome per artifact, regardless of the success/failure mix.
//
// When the batch deadline passes, outcomes already collected are preserved;
// artifacts still in flight fail promptly with a timeout outcome because
// their poll loops and HTTP requests observe the expired context. The batch
// is OK only if every outcome is OK; an empty batch is vacuously OK.
func (c *Coordinator) PublishAll(ctx context.Context, batchID string, artifacts []types.Artifact) types.BatchReport {
	report := types.BatchReport{
		BatchID:   batchID,
		StartedAt: time.Now(),
		OK:        true,
	}
	if len(artifacts) == 0 {
		c.Log.Info("nothing to publish", nil)
		report.FinishedAt = time.Now()
		return report
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parallel := c.Parallel
	if parallel <= 0 {
		parallel = len(artifacts)
	}
	sem := make(chan struct{}, parallel)
	outcomes := make(chan types.PublishOutcome, len(artifacts))

	var wg sync.WaitGroup
	for _, artifact := range artifacts {
		wg.Add(1)
		go func(a types.Artifact) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes <- types.PublishOutcome{
					Artifact: a,
					Err:      "batch timed out before publish started",
				}
				return
			}
			defer func() { <-sem }()

			outcomes <- c.Publisher.Publish(ctx, a)
		}(artifact)
	}

	// Single aggregation point: outcomes are logged, counted, and handed
	// to the observer from one goroutine only.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for outcome := range outcomes {
			if outcome.OK {
				c.Log.Info("template published successfully", map[string]any{
					"template": outcome.Artifact.Name,
					"id":       outcome.TrackingID,
					"polls":    outcome.Polls,
					"duration": outcome.Duration.String(),
				})
			} else {
				c.Log.Error("error publishing template", map[string]any{
					"template": outcome.Artifact.Name,
					"error":    outcome.Err,
				})
				report.OK = false
			}
			report.Outcomes = append(report.Outcomes, outcome)
			if c.Notify != nil {
				c.Notify(outcome)
			}
		}
	}()

	wg.Wait()
	close(outcomes)
	<-done

	report.FinishedAt = time.Now()
	c.Log.Info("publish batch finished", map[string]any{
		"templates": len(artifacts),
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
		"ok":        report.OK,
	})
	return report
}
