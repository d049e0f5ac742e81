package port

import (
	"context"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// Frame is one decoded picture in packed RGB24, row-major, unmirrored.
type Frame struct {
	Index       int
	TimestampMs float64
	Width       int
	Height      int
	Pix         []byte
}

// FrameSource is a sequential, single-pass stream of decoded frames.
type FrameSource interface {
	Metadata() entity.VideoMetadata
	// Next returns ok=false at end of stream. A non-nil error is a decoder
	// fault, not end of stream.
	Next() (frame Frame, ok bool, err error)
	Close() error
}

// FrameSourceOpener opens a staged video. Errors wrap entity.ErrFileOpen
// when the file is not a readable video stream.
type FrameSourceOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}
