package mediapipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	DefaultWorkerCommand = "models/run_pose_worker.sh"
	stopTimeout          = 2 * time.Second
)

type Config struct {
	Command                string
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

// Factory starts one MediaPipe Pose worker process per estimator so no
// tracking state is shared between requests.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.Command == "" {
		cfg.Command = DefaultWorkerCommand
	}
	if cfg.MinDetectionConfidence <= 0 {
		cfg.MinDetectionConfidence = 0.5
	}
	if cfg.MinTrackingConfidence <= 0 {
		cfg.MinTrackingConfidence = 0.5
	}
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) args() []string {
	return []string{
		"--min-detection-confidence", fmt.Sprintf("%.2f", f.cfg.MinDetectionConfidence),
		"--min-tracking-confidence", fmt.Sprintf("%.2f", f.cfg.MinTrackingConfidence),
	}
}

func (f *Factory) NewEstimator(ctx context.Context) (port.PoseEstimator, error) {
	cmd := exec.CommandContext(ctx, f.cfg.Command, f.args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start pose worker: %w", err)
	}

	logger := f.logger.With(zap.Int("worker_pid", cmd.Process.Pid))
	logger.Debug("pose worker spawned", zap.String("command", f.cfg.Command))

	e := newEstimator(stdin, stdout, logger)
	e.cmd = cmd
	e.wg.Add(1)
	go e.logStderr(stderr)
	return e, nil
}

// Estimator talks to a single worker. Calls to Extract must not overlap.
type Estimator struct {
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger
	cmd    *exec.Cmd
	wg     sync.WaitGroup

	seq    int
	broken error

	closeOnce sync.Once
	closeErr  error
}

func newEstimator(stdin io.WriteCloser, stdout io.Reader, logger *zap.Logger) *Estimator {
	return &Estimator{
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logger: logger,
	}
}

// Extract sends one frame and waits for its landmarks. A nil PoseSet with a
// nil error means no pose was found. Once a round trip fails the estimator
// stays failed.
func (e *Estimator) Extract(ctx context.Context, frame port.Frame) (entity.PoseSet, error) {
	if e.broken != nil {
		return nil, e.broken
	}
	if len(frame.Pix) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame %d: pixel buffer has %d bytes for %dx%d rgb", frame.Index, len(frame.Pix), frame.Width, frame.Height)
	}

	seq := e.seq
	e.seq++

	type outcome struct {
		resp poseResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		req := poseRequest{Seq: seq, Width: frame.Width, Height: frame.Height, FrameData: frame.Pix}
		if err := writeMessage(e.stdin, req); err != nil {
			done <- outcome{err: err}
			return
		}
		var resp poseResponse
		err := readMessage(e.stdout, &resp)
		done <- outcome{resp: resp, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		e.broken = fmt.Errorf("pose worker abandoned: %w", ctx.Err())
		return nil, e.broken
	}

	if out.err != nil {
		e.broken = fmt.Errorf("pose worker round trip: %w", out.err)
		return nil, e.broken
	}
	if out.resp.Seq != seq {
		e.broken = fmt.Errorf("%w: response seq %d, want %d", errProtocol, out.resp.Seq, seq)
		return nil, e.broken
	}
	if out.resp.Error != "" {
		return nil, fmt.Errorf("pose worker: %s", out.resp.Error)
	}
	return toPoseSet(out.resp)
}

// Close ends the worker by closing its stdin, and kills it if it has not
// exited within two seconds.
func (e *Estimator) Close() error {
	e.closeOnce.Do(func() {
		_ = e.stdin.Close()
		if e.cmd == nil {
			return
		}

		exited := make(chan error, 1)
		go func() {
			e.wg.Wait()
			exited <- e.cmd.Wait()
		}()

		select {
		case err := <-exited:
			if err != nil && e.broken == nil {
				e.closeErr = fmt.Errorf("pose worker exited: %w", err)
			}
		case <-time.After(stopTimeout):
			e.logger.Warn("pose worker stop timeout, killing process")
			if err := e.cmd.Process.Kill(); err != nil {
				e.logger.Error("failed to kill pose worker", zap.Error(err))
			}
			<-exited
		}
		e.logger.Debug("pose worker stopped")
	})
	return e.closeErr
}

func (e *Estimator) logStderr(r io.Reader) {
	defer e.wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			e.logger.Error("pose worker error", zap.String("log", line))
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			e.logger.Warn("pose worker warning", zap.String("log", line))
		default:
			e.logger.Debug("pose worker log", zap.String("log", line))
		}
	}
}
