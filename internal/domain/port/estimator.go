package port

import (
	"context"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// PoseEstimator runs pose inference on single frames. A nil PoseSet with a
// nil error means no pose was found.
type PoseEstimator interface {
	Extract(ctx context.Context, frame Frame) (entity.PoseSet, error)
	Close() error
}

// PoseEstimatorFactory hands out one estimator per request.
type PoseEstimatorFactory interface {
	NewEstimator(ctx context.Context) (PoseEstimator, error)
}
