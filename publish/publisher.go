package publish

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pithecene-io/stencil/hub"
	"github.com/pithecene-io/stencil/log"
	"github.com/pithecene-io/stencil/types"
)

// Hub is the remote template hub surface the workflow needs.
type Hub interface {
	// Publish submits one staged artifact download URL and returns the
	// handle to poll.
	Publish(ctx context.Context, downloadURL string) (types.TrackingHandle, error)
	StatusChecker
}

// Publisher publishes a single artifact and drives it to a terminal outcome.
// All failures are converted into the returned outcome; nothing escapes
// across the batch boundary.
type Publisher struct {
	// Hub submits and checks status.
	Hub Hub
	// Poller drives the submission to a terminal state.
	Poller *Poller
	// DownloadURL resolves the public URL the hub fetches the artifact from.
	DownloadURL func(types.Artifact) string
	// Log receives per-artifact diagnostics.
	Log *log.Logger
}

// Publish submits one artifact and polls it to completion.
func (p *Publisher) Publish(ctx context.Context, artifact types.Artifact) types.PublishOutcome {
	start := time.Now()

	handle, err := p.Hub.Publish(ctx, p.DownloadURL(artifact))
	if err != nil {
		var statusErr *hub.StatusError
		if errors.As(err, &statusErr) {
			p.Log.Error("publish request rejected", map[string]any{
				"template": artifact.Name,
				"code":     statusErr.Code,
				"body":     statusErr.Body,
			})
		}
		return types.PublishOutcome{
			Artifact: artifact,
			Err:      err.Error(),
			Duration: time.Since(start),
		}
	}

	status, polls, err := p.Poller.Poll(ctx, handle)
	if err != nil {
		return types.PublishOutcome{
			Artifact:   artifact,
			TrackingID: handle.ID,
			Err:        err.Error(),
			Polls:      polls,
			Duration:   time.Since(start),
		}
	}

	outcome := types.PublishOutcome{
		Artifact:   artifact,
		TrackingID: handle.ID,
		Polls:      polls,
		Duration:   time.Since(start),
	}
	if status.State == types.StateFailed {
		outcome.Err = strings.Join(status.Errors, "\n")
		if outcome.Err == "" {
			outcome.Err = "template validation failed"
		}
		return outcome
	}
	outcome.OK = true
	return outcome
}
