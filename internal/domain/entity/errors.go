package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDownload: the video URL was unreachable or the transfer failed.
	ErrDownload = errors.New("video download failed")
	// ErrFileOpen: the staged file could not be opened as a video stream.
	ErrFileOpen = errors.New("video stream could not be opened")
	// ErrUnexpected covers every other fault during acquisition, decoding or
	// assembly.
	ErrUnexpected = errors.New("unexpected failure")
)

// StageError ties a failure to the pipeline stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailureKind returns the sentinel an error classifies as, defaulting to
// ErrUnexpected.
func FailureKind(err error) error {
	for _, kind := range []error{ErrInvalidRequest, ErrDownload, ErrFileOpen} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnexpected
}
