package opencv

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Opener decodes staged videos in-process through OpenCV.
type Opener struct {
	logger *zap.Logger
}

func NewOpener(logger *zap.Logger) *Opener {
	return &Opener{logger: logger}
}

func (o *Opener) Open(_ context.Context, path string) (port.FrameSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrFileOpen, err)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrFileOpen, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: error opening video stream or file", entity.ErrFileOpen)
	}

	meta := entity.VideoMetadata{
		FrameRate:          capture.Get(gocv.VideoCaptureFPS),
		Width:              int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:             int(capture.Get(gocv.VideoCaptureFrameHeight)),
		DeclaredFrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}
	o.logger.Debug("opencv capture opened", zap.String("path", path), zap.Any("metadata", meta))

	return &captureSource{
		capture: capture,
		img:     gocv.NewMat(),
		rgb:     gocv.NewMat(),
		meta:    meta,
	}, nil
}

type captureSource struct {
	capture *gocv.VideoCapture
	img     gocv.Mat
	rgb     gocv.Mat
	meta    entity.VideoMetadata
	index   int
	done    bool

	closeOnce sync.Once
	closeErr  error
}

func (s *captureSource) Metadata() entity.VideoMetadata { return s.meta }

// Next reads one frame and converts it from BGR to packed RGB. The
// timestamp is the capture position reported right after the read.
func (s *captureSource) Next() (port.Frame, bool, error) {
	if s.done {
		return port.Frame{}, false, nil
	}
	if ok := s.capture.Read(&s.img); !ok || s.img.Empty() {
		s.done = true
		return port.Frame{}, false, nil
	}

	gocv.CvtColor(s.img, &s.rgb, gocv.ColorBGRToRGB)
	frame := port.Frame{
		Index:       s.index,
		TimestampMs: s.capture.Get(gocv.VideoCapturePosMsec),
		Width:       s.rgb.Cols(),
		Height:      s.rgb.Rows(),
		Pix:         s.rgb.ToBytes(),
	}
	s.index++
	return frame, true, nil
}

func (s *captureSource) Close() error {
	s.closeOnce.Do(func() {
		if err := s.capture.Close(); err != nil {
			s.closeErr = fmt.Errorf("close capture: %w", err)
		}
		if err := s.img.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		if err := s.rgb.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
