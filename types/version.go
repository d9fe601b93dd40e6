// Package types defines the records exchanged with the job dashboard.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI, the user agent and notification payloads all report this version.
const Version = "0.3.0"

// UserAgent is the default User-Agent sent with every dashboard request.
// The dashboard rejects requests without one (HTTP 500).
const UserAgent = "rayjob-go/" + Version

// Package URI constants. These must stay bit-exact to interoperate with
// packages uploaded by other dashboard clients.
const (
	// PackageProtocol is the storage protocol for uploaded packages.
	PackageProtocol = "gcs"
	// PackagePrefix prefixes content-addressed package names.
	PackagePrefix = "_ray_pkg_"
)

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	Version    string `json:"version" yaml:"version"`
	RayVersion string `json:"ray_version" yaml:"ray_version"`
	RayCommit  string `json:"ray_commit" yaml:"ray_commit"`
}
