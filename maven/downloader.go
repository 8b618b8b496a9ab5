package maven

import "context"

// PomRequest identifies a POM to download and carries the context a
// downloader may use to locate it: the repositories active for the requesting
// subtree, the POM the request originates from, and a parent declaration's
// relativePath hint.
type PomRequest struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string

	// RelativePath is the parent declaration's relativePath, when the request
	// is for a parent POM.
	RelativePath string

	// Originator is the POM whose resolution triggered this request, nil for
	// root requests.
	Originator *RawPom

	Repositories []RawRepository
}

// Downloader obtains raw POMs and artifact bytes for the resolver. A (nil,
// nil) return means the artifact was not found in any repository; an error
// means the downloader itself failed, which the resolver treats the same as
// a missing artifact for the current coordinate.
//
// Implementations must be idempotent: the resolver may request the same
// coordinate any number of times within one resolution.
type Downloader interface {
	// DownloadPom fetches and parses the POM for the requested coordinates.
	DownloadPom(ctx context.Context, req PomRequest) (*RawPom, error)

	// DownloadArtifact fetches the artifact bytes for a coordinate.
	DownloadArtifact(ctx context.Context, ga GroupArtifact, classifier, version string) ([]byte, error)

	// FindVersions lists the versions available for a coordinate, used to
	// resolve version range expressions. The order is not significant.
	FindVersions(ctx context.Context, ga GroupArtifact) ([]string, error)
}
