package port

import "context"

// VideoFetcher copies the object behind rawURL to destPath.
type VideoFetcher interface {
	Fetch(ctx context.Context, rawURL string, destPath string) error
}

// StagedVideo is a local copy of a remote video scoped to one request.
type StagedVideo interface {
	Path() string
	// Release removes the local copy. Safe to call more than once.
	Release() error
}

type VideoStager interface {
	Stage(ctx context.Context, rawURL string) (StagedVideo, error)
}
