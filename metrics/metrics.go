// Package metrics holds the Prometheus collectors of the sample pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionframes_samples_total",
		Help: "Total number of samples produced, by dataset variant, mode and status",
	}, []string{"variant", "mode", "status"})

	SampleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actionframes_sample_duration_seconds",
		Help:    "Time to read and transform one sample",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"variant"})

	FramesLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actionframes_frames_loaded_total",
		Help: "Total number of frame images decoded",
	})

	FrameErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actionframes_frame_errors_total",
		Help: "Total number of frame images that could not be read",
	})
)

// Status label values for SamplesTotal.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
