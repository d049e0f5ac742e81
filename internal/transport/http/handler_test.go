package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExtractor struct {
	calls  []string
	result *entity.Result
	err    error
	panics bool
}

func (f *fakeExtractor) Execute(_ context.Context, videoURL string) (*entity.Result, error) {
	f.calls = append(f.calls, videoURL)
	if f.panics {
		panic("estimator blew up")
	}
	return f.result, f.err
}

func newEngine(t *testing.T, ex Extractor) *gin.Engine {
	t.Helper()
	engine, err := Build(Options{Extractor: ex, Logger: zap.NewNop()})
	require.NoError(t, err)
	return engine
}

func do(engine *gin.Engine, method, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func sampleResult() *entity.Result {
	res := entity.NewResult(entity.VideoMetadata{FrameRate: 30, Width: 640, Height: 480, DeclaredFrameCount: 2})
	res.Frames[0] = entity.FrameRecord{Timestamp: 33.3, Pose: nil}
	pose := entity.NewPlaceholderPose()
	pose[0] = entity.Landmark{X: 0.5, Y: 0.25, Z: -0.1, Visibility: 0.99}
	res.Frames[1] = entity.FrameRecord{Timestamp: 66.6, Pose: pose}
	return res
}

func TestExtractSuccess(t *testing.T) {
	ex := &fakeExtractor{result: sampleResult()}
	rec := do(newEngine(t, ex), http.MethodPost, `{"video_url":"http://videos.local/a.mp4"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"http://videos.local/a.mp4"}, ex.calls)

	var body struct {
		FrameRate float64 `json:"frame_rate"`
		Size      []int   `json:"size"`
		Frames    []struct {
			Timestamp float64       `json:"timestamp"`
			Pose      *[][4]float64 `json:"pose"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 30.0, body.FrameRate)
	assert.Equal(t, []int{640, 480}, body.Size)
	require.Len(t, body.Frames, 2)
	assert.Nil(t, body.Frames[0].Pose)
	assert.Equal(t, 33.3, body.Frames[0].Timestamp)
	require.NotNil(t, body.Frames[1].Pose)
	assert.Len(t, *body.Frames[1].Pose, entity.LandmarkCount)
	assert.Equal(t, [4]float64{0.5, 0.25, -0.1, 0.99}, (*body.Frames[1].Pose)[0])
}

func TestExtractAcceptsGet(t *testing.T) {
	ex := &fakeExtractor{result: sampleResult()}
	rec := do(newEngine(t, ex), http.MethodGet, `{"video_url":"http://videos.local/b.mp4"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"http://videos.local/b.mp4"}, ex.calls)
}

func TestExtractFailureIs500(t *testing.T) {
	tests := map[string]error{
		"download":   &entity.StageError{Stage: entity.StageDownloading, Err: fmt.Errorf("%w: connection refused", entity.ErrDownload)},
		"file open":  &entity.StageError{Stage: entity.StageDecoding, Err: fmt.Errorf("%w: not a video", entity.ErrFileOpen)},
		"unexpected": &entity.StageError{Stage: entity.StageDecoding, Err: fmt.Errorf("%w: boom", entity.ErrUnexpected)},
	}
	for name, failure := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(newEngine(t, &fakeExtractor{err: failure}), http.MethodPost, `{"video_url":"http://videos.local/a.mp4"}`)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, failure.Error(), body["error"])
			assert.NotContains(t, body, "frames")
		})
	}
}

func TestExtractMalformedBody(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":   `video_url=http://x`,
		"empty":      ``,
		"wrong type": `{"video_url": 42}`,
	} {
		t.Run(name, func(t *testing.T) {
			ex := &fakeExtractor{}
			rec := do(newEngine(t, ex), http.MethodPost, payload)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, ex.calls)
		})
	}
}

func TestExtractMissingURLReachesExtractor(t *testing.T) {
	ex := &fakeExtractor{err: &entity.StageError{Stage: entity.StageIdle, Err: entity.ErrInvalidRequest}}
	rec := do(newEngine(t, ex), http.MethodPost, `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{""}, ex.calls)
}

func TestExtractPanicIs500(t *testing.T) {
	rec := do(newEngine(t, &fakeExtractor{panics: true}), http.MethodPost, `{"video_url":"http://videos.local/a.mp4"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body entity.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "estimator blew up")
}

func TestOtherRoutesNotServed(t *testing.T) {
	engine := newEngine(t, &fakeExtractor{result: sampleResult()})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildRequiresExtractor(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}
