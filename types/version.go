//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version. The CLI and the history record
// format share this version; history readers accept older records.
const Version = "0.3.0"
