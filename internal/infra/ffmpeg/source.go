package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
)

// Opener decodes staged videos with an ffmpeg child process that writes
// packed rgb24 frames to a pipe.
type Opener struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewOpener uses the given binaries, defaulting to "ffmpeg" and "ffprobe" on
// PATH.
func NewOpener(ffmpegPath, ffprobePath string, logger *zap.Logger) *Opener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Opener{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

func (e *Opener) Open(ctx context.Context, path string) (port.FrameSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrFileOpen, err)
	}

	meta, err := probeMP4(path)
	if err != nil {
		e.logger.Debug("mp4 probe failed, falling back to ffprobe", zap.String("path", path), zap.Error(err))
		meta, err = e.probeFFprobe(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrFileOpen, err)
		}
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, decodeArgs(path)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr := &limitedBuffer{max: 8 << 10}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", entity.ErrFileOpen, err)
	}

	e.logger.Debug("ffmpeg decoder started",
		zap.Int("pid", cmd.Process.Pid),
		zap.Float64("frame_rate", meta.FrameRate),
		zap.Int("declared_frame_count", meta.DeclaredFrameCount),
	)

	return &pipeSource{
		frameReader: newFrameReader(stdout, meta),
		cmd:         cmd,
		stderr:      stderr,
		logger:      e.logger,
	}, nil
}

// decodeArgs keeps frames in stored orientation so their size matches the
// coded dimensions reported in the metadata.
func decodeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}
}

// frameReader cuts a raw rgb24 byte stream into frames.
type frameReader struct {
	r         io.Reader
	meta      entity.VideoMetadata
	frameSize int
	index     int
	done      bool
}

func newFrameReader(r io.Reader, meta entity.VideoMetadata) *frameReader {
	return &frameReader{r: r, meta: meta, frameSize: meta.Width * meta.Height * 3}
}

func (r *frameReader) Metadata() entity.VideoMetadata { return r.meta }

// Next returns ok=false once the stream ends. A trailing partial frame ends
// the stream as well.
func (r *frameReader) Next() (port.Frame, bool, error) {
	if r.done || r.frameSize == 0 {
		return port.Frame{}, false, nil
	}
	pix := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.r, pix); err != nil {
		r.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return port.Frame{}, false, nil
		}
		return port.Frame{}, false, fmt.Errorf("read raw frame: %w", err)
	}

	var ts float64
	if r.meta.FrameRate > 0 {
		ts = float64(r.index) * 1000 / r.meta.FrameRate
	}
	frame := port.Frame{
		Index:       r.index,
		TimestampMs: ts,
		Width:       r.meta.Width,
		Height:      r.meta.Height,
		Pix:         pix,
	}
	r.index++
	return frame, true, nil
}

type pipeSource struct {
	*frameReader
	cmd    *exec.Cmd
	stderr *limitedBuffer
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Close stops ffmpeg if it is still running and reaps it. A non-zero exit
// after the whole stream was consumed is reported.
func (s *pipeSource) Close() error {
	s.closeOnce.Do(func() {
		finished := s.done
		if !finished {
			_ = s.cmd.Process.Kill()
		}
		err := s.cmd.Wait()
		if err != nil && finished {
			s.closeErr = fmt.Errorf("ffmpeg exited: %w: %s", err, s.stderr.String())
			return
		}
		if msg := s.stderr.String(); msg != "" {
			s.logger.Debug("ffmpeg stderr", zap.String("output", msg))
		}
	})
	return s.closeErr
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
