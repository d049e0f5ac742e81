package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ExtractPoseUseCase struct {
	stager     port.VideoStager
	opener     port.FrameSourceOpener
	estimators port.PoseEstimatorFactory
	publisher  port.EventPublisher
	logger     *zap.Logger
	padding    PaddingMode
}

type ExtractPoseConfig struct {
	Padding PaddingMode
}

// NewExtractPoseUseCase wires the pipeline. publisher may be nil.
func NewExtractPoseUseCase(
	stager port.VideoStager,
	opener port.FrameSourceOpener,
	estimators port.PoseEstimatorFactory,
	publisher port.EventPublisher,
	logger *zap.Logger,
	cfg ExtractPoseConfig,
) *ExtractPoseUseCase {
	padding := cfg.Padding
	if padding == "" {
		padding = PaddingPlaceholder
	}
	return &ExtractPoseUseCase{
		stager:     stager,
		opener:     opener,
		estimators: estimators,
		publisher:  publisher,
		logger:     logger,
		padding:    padding,
	}
}

// Execute downloads, decodes and extracts poses from the video at videoURL.
// On failure no partial result is returned and the error classifies with
// entity.FailureKind. The staged file is removed before Execute returns.
func (uc *ExtractPoseUseCase) Execute(ctx context.Context, videoURL string) (result *entity.Result, err error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractPoseUseCase.Execute")
	defer span.End()

	ext := entity.NewExtraction(videoURL)
	span.SetAttributes(
		attribute.String("extraction.id", ext.ID.String()),
		attribute.String("extraction.video_url", videoURL),
	)
	log := uc.logger.With(zap.String("request_id", ext.ID.String()), zap.String("video_url", videoURL))

	metrics.ActiveExtractions.Inc()
	defer metrics.ActiveExtractions.Dec()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &entity.StageError{Stage: ext.Stage, Err: fmt.Errorf("%w: panic: %v", entity.ErrUnexpected, r)}
		}
		uc.finish(ctx, span, ext, result, err, log)
	}()

	if strings.TrimSpace(videoURL) == "" {
		return nil, &entity.StageError{Stage: entity.StageIdle, Err: fmt.Errorf("%w: video_url is required", entity.ErrInvalidRequest)}
	}

	log.Info("extraction started")
	return uc.run(ctx, ext, log)
}

func (uc *ExtractPoseUseCase) run(ctx context.Context, ext *entity.Extraction, log *zap.Logger) (*entity.Result, error) {
	tracer := otel.Tracer("usecase")

	// Download
	ext.Advance(entity.StageDownloading)
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	staged, err := uc.stager.Stage(ctx2, ext.VideoURL)
	spanDl.End()
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return nil, &entity.StageError{Stage: entity.StageDownloading, Err: err}
	}
	defer func() {
		if err := staged.Release(); err != nil {
			log.Warn("failed to remove staged video", zap.String("path", staged.Path()), zap.Error(err))
		}
	}()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Decode and extract
	ext.Advance(entity.StageDecoding)
	decStart := time.Now()
	ctx3, spanDec := tracer.Start(ctx, "decode_frames")
	defer spanDec.End()

	source, err := uc.opener.Open(ctx3, staged.Path())
	if err != nil {
		log.Error("failed to open video stream", zap.Error(err))
		return nil, &entity.StageError{Stage: entity.StageDecoding, Err: err}
	}
	closeSource := sync.OnceValue(source.Close)
	defer closeSource()

	meta := source.Metadata()
	ext.DeclaredFrames = meta.DeclaredFrameCount
	log.Info("video opened",
		zap.Float64("frame_rate", meta.FrameRate),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("declared_frame_count", meta.DeclaredFrameCount),
	)

	estimator, err := uc.estimators.NewEstimator(ctx3)
	if err != nil {
		log.Error("failed to start pose estimator", zap.Error(err))
		return nil, &entity.StageError{Stage: entity.StageDecoding, Err: fmt.Errorf("%w: start estimator: %v", entity.ErrUnexpected, err)}
	}
	closeEstimator := sync.OnceValue(estimator.Close)
	defer closeEstimator()

	asm := NewAssembler(meta)
	for {
		frame, ok, err := source.Next()
		if err != nil {
			log.Error("frame decode failed", zap.Int("frame", ext.DecodedFrames), zap.Error(err))
			return nil, &entity.StageError{Stage: entity.StageDecoding, Err: fmt.Errorf("read frame %d: %w", ext.DecodedFrames, err)}
		}
		if !ok {
			break
		}
		ext.DecodedFrames++

		pose, err := estimator.Extract(ctx3, frame)
		if err != nil {
			log.Error("pose extraction failed", zap.Int("frame", frame.Index), zap.Error(err))
			return nil, &entity.StageError{Stage: entity.StageDecoding, Err: fmt.Errorf("extract frame %d: %w", frame.Index, err)}
		}
		if !pose.Detected() {
			ext.AbsentPoses++
		}
		asm.Record(frame.TimestampMs, pose)
	}
	ext.DroppedFrames = asm.Dropped()

	if err := closeEstimator(); err != nil {
		log.Warn("pose estimator did not shut down cleanly", zap.Error(err))
	}
	if err := closeSource(); err != nil {
		log.Warn("frame source did not close cleanly", zap.Error(err))
	}
	spanDec.SetAttributes(
		attribute.Int("frames.decoded", ext.DecodedFrames),
		attribute.Int("frames.absent_pose", ext.AbsentPoses),
	)
	metrics.StageDuration.WithLabelValues("decode").Observe(time.Since(decStart).Seconds())
	metrics.FramesDecodedTotal.Add(float64(ext.DecodedFrames))
	metrics.PosesAbsentTotal.Add(float64(ext.AbsentPoses))

	// Assemble
	ext.Advance(entity.StageAssembling)
	if ext.DroppedFrames > 0 {
		log.Warn("decoder yielded more frames than declared, extra frames dropped",
			zap.Int("declared_frame_count", meta.DeclaredFrameCount),
			zap.Int("dropped", ext.DroppedFrames),
		)
	}
	if asm.Filled() < meta.DeclaredFrameCount {
		log.Warn("decoder yielded fewer frames than declared",
			zap.Int("declared_frame_count", meta.DeclaredFrameCount),
			zap.Int("decoded", asm.Filled()),
			zap.String("padding_mode", string(uc.padding)),
		)
	}

	return asm.Finish(uc.padding), nil
}

func (uc *ExtractPoseUseCase) finish(
	ctx context.Context,
	span trace.Span,
	ext *entity.Extraction,
	result *entity.Result,
	err error,
	log *zap.Logger,
) {
	if err != nil {
		ext.MarkFailed(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ExtractionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Error("extraction failed",
			zap.String("failed_stage", string(ext.FailedStage)),
			zap.Duration("elapsed", ext.Duration()),
			zap.Error(err),
		)
	} else {
		ext.MarkResponding()
		metrics.ExtractionsTotal.WithLabelValues("completed").Inc()
		log.Info("extraction completed",
			zap.Int("decoded_frames", ext.DecodedFrames),
			zap.Int("absent_poses", ext.AbsentPoses),
			zap.Duration("elapsed", ext.Duration()),
		)
	}

	uc.publishEvent(ctx, ext, result, log)
}

func (uc *ExtractPoseUseCase) publishEvent(ctx context.Context, ext *entity.Extraction, result *entity.Result, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	event := entity.ExtractionEvent{
		RequestID:     ext.ID,
		VideoURL:      ext.VideoURL,
		Status:        ext.Stage,
		DeclaredCount: ext.DeclaredFrames,
		DecodedFrames: ext.DecodedFrames,
		AbsentPoses:   ext.AbsentPoses,
		DroppedFrames: ext.DroppedFrames,
		ErrorMessage:  ext.ErrorMessage,
		DurationMs:    ext.Duration().Milliseconds(),
	}
	if ext.Failed() {
		event.FailedStage = ext.FailedStage
	}
	if result != nil {
		event.FrameRate = result.FrameRate
	}
	data, _ := json.Marshal(event)
	if err := uc.publisher.PublishEvent(ctx, data); err != nil {
		log.Error("failed to publish extraction event", zap.Error(err))
	}
}

func outcomeLabel(err error) string {
	switch kind := entity.FailureKind(err); {
	case errors.Is(kind, entity.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(kind, entity.ErrDownload):
		return "download_error"
	case errors.Is(kind, entity.ErrFileOpen):
		return "file_open_error"
	default:
		return "unexpected_error"
	}
}
