package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panoflat_frames_extracted_total",
		Help: "Total number of frames successfully extracted",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panoflat_frame_failures_total",
		Help: "Total number of per-frame failures, by kind",
	}, []string{"kind"})

	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "panoflat_frame_duration_seconds",
		Help:    "Duration of projecting and storing a single frame",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "panoflat_active_workers",
		Help: "Number of workers currently projecting frames",
	})
)
