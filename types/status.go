//nolint:revive // types is a common Go package naming convention
package types

// TemplateState is the remote validation state of a submitted template.
type TemplateState string

const (
	// StatePending means validation has not finished. The only non-terminal
	// state: it may stay pending across polls or move to validated/failed.
	StatePending TemplateState = "pending"
	// StateValidated means the template passed validation.
	StateValidated TemplateState = "validated"
	// StateFailed means the template was rejected by validation.
	StateFailed TemplateState = "failed"
)

// Terminal reports whether the state ends the poll loop.
func (s TemplateState) Terminal() bool {
	return s == StateValidated || s == StateFailed
}

// TemplateStatus is one observation of a submitted template's validation state.
type TemplateStatus struct {
	// ID is the tracking identifier the observation belongs to.
	ID string `json:"id"`
	// State is the observed validation state.
	State TemplateState `json:"state"`
	// Errors holds the service-provided error list. Populated only for StateFailed.
	Errors []string `json:"errors,omitempty"`
}
