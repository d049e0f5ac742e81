// Package app assembles the pose extraction pipeline from configuration.
package app

import (
	"fmt"

	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-pose-service/internal/infra/httpfetch"
	"github.com/fiapx/fiapx-pose-service/internal/infra/mediapipe"
	miniostorage "github.com/fiapx/fiapx-pose-service/internal/infra/minio"
	"github.com/fiapx/fiapx-pose-service/internal/infra/opencv"
	"github.com/fiapx/fiapx-pose-service/internal/infra/staging"
	"github.com/fiapx/fiapx-pose-service/internal/usecase"
	"go.uber.org/zap"
)

// NewStager builds the staging area with an http(s) fetcher and, when a
// MinIO endpoint is configured, an s3:// fetcher. Leftovers from a previous
// run are swept.
func NewStager(cfg *config.Config, logger *zap.Logger) (*staging.Stager, error) {
	stager, err := staging.NewStager(cfg.TempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	web := httpfetch.NewFetcher(cfg.DownloadUserAgent)
	stager.Register("http", web)
	stager.Register("https", web)

	if cfg.MinIOEndpoint != "" {
		storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio storage: %w", err)
		}
		stager.Register("s3", storage)
		logger.Info("s3 video urls enabled", zap.String("endpoint", cfg.MinIOEndpoint))
	}

	if n, err := stager.Sweep(); err != nil {
		logger.Warn("failed to sweep staging dir", zap.Error(err))
	} else if n > 0 {
		logger.Info("removed leftover staged videos", zap.Int("count", n))
	}
	return stager, nil
}

// NewOpener picks the frame source backend named by cfg.Decoder.
func NewOpener(cfg *config.Config, logger *zap.Logger) (port.FrameSourceOpener, error) {
	switch cfg.Decoder {
	case config.DecoderOpenCV:
		return opencv.NewOpener(logger), nil
	case config.DecoderFFmpeg:
		return ffmpeg.NewOpener(cfg.FFmpegPath, cfg.FFprobePath, logger), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", cfg.Decoder)
	}
}

func NewEstimatorFactory(cfg *config.Config, logger *zap.Logger) *mediapipe.Factory {
	return mediapipe.NewFactory(mediapipe.Config{
		Command:                cfg.PoseWorkerCmd,
		MinDetectionConfidence: cfg.PoseMinDetectionConfidence,
		MinTrackingConfidence:  cfg.PoseMinTrackingConfidence,
	}, logger)
}

// NewExtractPose wires the use case. publisher may be nil.
func NewExtractPose(cfg *config.Config, publisher port.EventPublisher, logger *zap.Logger) (*usecase.ExtractPoseUseCase, error) {
	padding, err := usecase.ParsePaddingMode(cfg.PaddingMode)
	if err != nil {
		return nil, err
	}
	stager, err := NewStager(cfg, logger)
	if err != nil {
		return nil, err
	}
	opener, err := NewOpener(cfg, logger)
	if err != nil {
		return nil, err
	}

	return usecase.NewExtractPoseUseCase(
		stager,
		opener,
		NewEstimatorFactory(cfg, logger),
		publisher,
		logger,
		usecase.ExtractPoseConfig{Padding: padding},
	), nil
}
