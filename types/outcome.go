//nolint:revive // types is a common Go package naming convention
package types

import "time"

// PublishOutcome is the result of publishing one artifact.
// Exactly one outcome exists per submitted artifact, success or failure.
type PublishOutcome struct {
	// Artifact is the unit this outcome belongs to.
	Artifact Artifact `msgpack:"artifact" json:"artifact" yaml:"artifact"`
	// OK is true if the template was validated by the hub.
	OK bool `msgpack:"ok" json:"ok" yaml:"ok"`
	// TrackingID is the hub-assigned identifier. Empty when the publish
	// request itself failed before a handle was issued.
	TrackingID string `msgpack:"tracking_id" json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`
	// Err is the failure message: transport errors, the newline-joined
	// validation error list, or a timeout description. Empty on success.
	Err string `msgpack:"err" json:"err,omitempty" yaml:"err,omitempty"`
	// Polls is the number of status checks issued for this artifact.
	Polls int `msgpack:"polls" json:"polls" yaml:"polls"`
	// Duration is the wall time from submit to terminal outcome.
	Duration time.Duration `msgpack:"duration" json:"duration" yaml:"duration"`
}

// BatchReport aggregates the outcomes of one publish batch.
type BatchReport struct {
	// BatchID correlates log entries, history records, and TUI state.
	BatchID string `msgpack:"batch_id" json:"batch_id" yaml:"batch_id"`
	// StartedAt is when the batch was submitted.
	StartedAt time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
	// FinishedAt is when the last outcome was collected.
	FinishedAt time.Time `msgpack:"finished_at" json:"finished_at" yaml:"finished_at"`
	// Outcomes holds one entry per submitted artifact. Order follows outcome
	// arrival and carries no meaning.
	Outcomes []PublishOutcome `msgpack:"outcomes" json:"outcomes" yaml:"outcomes"`
	// OK is the conjunction of all outcomes. Vacuously true for an empty batch.
	OK bool `msgpack:"ok" json:"ok" yaml:"ok"`
}

// Succeeded returns the number of validated artifacts.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of failed artifacts.
func (r *BatchReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
