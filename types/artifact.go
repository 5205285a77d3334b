// Package types defines core domain types for the stencil publish pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

// Artifact is one packaged template ready for remote publication.
// Immutable once created; produced by the packaging step, consumed by
// the publish workflow and the staging store.
type Artifact struct {
	// Name is the template name, e.g. "hello-scala".
	Name string `msgpack:"name" json:"name" yaml:"name"`
	// RemoteKey is the staged object key, e.g. "templates/hello-scala.zip".
	RemoteKey string `msgpack:"remote_key" json:"remote_key" yaml:"remote_key"`
}

// TrackingHandle identifies a submitted template at the remote hub.
// Created from the publish response and owned by the single poll loop
// for that artifact; discarded once a terminal status is reached.
type TrackingHandle struct {
	// ID is the tracking identifier assigned by the hub.
	ID string `json:"id"`
	// StatusURL is the endpoint to poll for validation status.
	StatusURL string `json:"status_url"`
}
