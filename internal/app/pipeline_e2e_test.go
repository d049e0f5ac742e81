package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// alternatingEstimator reports a pose on even frames only.
type alternatingEstimator struct{}

func (alternatingEstimator) Extract(_ context.Context, frame port.Frame) (entity.PoseSet, error) {
	if frame.Index%2 == 1 {
		return nil, nil
	}
	pose := entity.NewPlaceholderPose()
	pose[0] = entity.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	return pose, nil
}

func (alternatingEstimator) Close() error { return nil }

type alternatingFactory struct{}

func (alternatingFactory) NewEstimator(context.Context) (port.PoseEstimator, error) {
	return alternatingEstimator{}, nil
}

func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	video := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-pix_fmt", "yuv420p", "-c:v", "mpeg4", video)
	out, err := gen.CombinedOutput()
	require.NoError(t, err, string(out))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, video)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	stager, err := NewStager(cfg, zap.NewNop())
	require.NoError(t, err)
	opener, err := NewOpener(cfg, zap.NewNop())
	require.NoError(t, err)

	uc := usecase.NewExtractPoseUseCase(stager, opener, alternatingFactory{}, nil, zap.NewNop(), usecase.ExtractPoseConfig{})

	result, err := uc.Execute(context.Background(), srv.URL+"/clip.mp4")
	require.NoError(t, err)

	assert.InDelta(t, 10.0, result.FrameRate, 0.01)
	assert.Equal(t, [2]int{64, 48}, result.Size)
	require.Len(t, result.Frames, 10)
	for i, f := range result.Frames {
		assert.InDelta(t, float64(i)*100, f.Timestamp, 0.01)
		assert.Equal(t, i%2 == 0, f.Pose.Detected(), "frame %d", i)
	}

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineUnreachableURL(t *testing.T) {
	cfg := testConfig(t)
	stager, err := NewStager(cfg, zap.NewNop())
	require.NoError(t, err)
	opener, err := NewOpener(cfg, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	uc := usecase.NewExtractPoseUseCase(stager, opener, alternatingFactory{}, nil, zap.NewNop(), usecase.ExtractPoseConfig{})
	_, err = uc.Execute(context.Background(), srv.URL+"/gone.mp4")
	assert.ErrorIs(t, err, entity.ErrDownload)

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
