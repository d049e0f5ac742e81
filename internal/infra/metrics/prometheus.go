package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pose_extractions_total",
		Help: "Total number of extraction requests, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pose_extraction_stage_duration_seconds",
		Help:    "Duration of each extraction pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pose_frames_decoded_total",
		Help: "Total number of frames decoded across all requests",
	})

	PosesAbsentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pose_frames_without_pose_total",
		Help: "Total number of decoded frames where no pose was detected",
	})

	ActiveExtractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pose_active_extractions",
		Help: "Number of extractions currently in progress",
	})
)
